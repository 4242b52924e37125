package credits

import "time"

// Account is a user's credit balance snapshot.
type Account struct {
	UserID    string    `json:"userId"`
	Balance   int       `json:"balance"`
	Unlimited bool      `json:"unlimited"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const defaultStartingBalance = 3

func defaultAccount(userID string) Account {
	return Account{
		UserID:    userID,
		Balance:   defaultStartingBalance,
		UpdatedAt: time.Now().UTC(),
	}
}
