package analysis

import (
	"sort"

	"textlens-backend/internal/prompt"
)

// batchSize is the number of questions sent to the provider per prompt.
const batchSize = 5

// Kind identifies one analysis variant: a question set plus a prompt
// verbosity mode. The set is closed; every kind runs through the same
// parametrized pipeline.
type Kind struct {
	ID        string
	Questions []string
	Mode      prompt.Mode
}

// KindByID resolves an analysis kind identifier.
func KindByID(id string) (Kind, bool) {
	kind, ok := kinds[id]
	return kind, ok
}

// Kinds returns every supported analysis kind sorted by id.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// KnownKind reports whether id names a supported analysis kind.
func KnownKind(id string) bool {
	_, ok := kinds[id]
	return ok
}

// Batches partitions questions into consecutive groups of batchSize, keeping
// order. The last group may be smaller; no group is empty.
func Batches(questions []string) [][]string {
	var batches [][]string
	for start := 0; start < len(questions); start += batchSize {
		end := start + batchSize
		if end > len(questions) {
			end = len(questions)
		}
		batches = append(batches, questions[start:end])
	}
	return batches
}

var kinds = buildKinds()

func buildKinds() map[string]Kind {
	out := make(map[string]Kind)
	families := []struct {
		id            string
		core          []string
		comprehensive []string
		micro         []string
	}{
		{
			id:            "manuscript",
			core:          manuscriptQuestions,
			comprehensive: append(append([]string{}, manuscriptQuestions...), manuscriptDeepQuestions...),
			micro:         manuscriptQuestions[:batchSize],
		},
		{
			id:            "screenplay",
			core:          screenplayQuestions,
			comprehensive: append(append([]string{}, screenplayQuestions...), screenplayDeepQuestions...),
			micro:         screenplayQuestions[:batchSize],
		},
		{
			id:            "query_letter",
			core:          queryLetterQuestions,
			comprehensive: append(append([]string{}, queryLetterQuestions...), queryLetterDeepQuestions...),
			micro:         queryLetterQuestions[:batchSize],
		},
	}
	for _, f := range families {
		out[f.id] = Kind{ID: f.id, Questions: f.core, Mode: prompt.ModeStandard}
		out[f.id+"_comprehensive"] = Kind{ID: f.id + "_comprehensive", Questions: f.comprehensive, Mode: prompt.ModeStandard}
		out[f.id+"_micro"] = Kind{ID: f.id + "_micro", Questions: f.micro, Mode: prompt.ModeMicro}
	}
	return out
}

var manuscriptQuestions = []string{
	"How compelling is the opening chapter, and does it establish a clear narrative hook?",
	"How consistent and distinct are the main characters' voices throughout the text?",
	"Does the pacing sustain momentum, and where does it sag or rush?",
	"How well does the plot structure build toward its major turning points?",
	"Is the point of view handled consistently, and does it serve the story?",
	"How effective is the dialogue at revealing character and advancing the plot?",
	"Are the stakes clear, escalating, and grounded in the protagonist's motivation?",
	"How vivid and economical is the descriptive prose?",
	"Does the ending resolve the central conflict in a way the text has earned?",
	"What themes emerge, and how consistently are they developed?",
}

var manuscriptDeepQuestions = []string{
	"Which subplots strengthen the main narrative and which dilute it?",
	"How does the manuscript compare to current conventions of its genre?",
	"Where does the prose rely on exposition that could be dramatized instead?",
	"How believable are the secondary characters' motivations?",
	"Which scenes could be cut or merged without losing essential material?",
}

var screenplayQuestions = []string{
	"Does the first act establish the protagonist, the world, and the dramatic question efficiently?",
	"How visual is the storytelling, and where does it lean on dialogue to carry action?",
	"Are scene transitions purposeful, and does each scene end later than it should or earlier?",
	"How distinct are the characters when their dialogue is read without name tags?",
	"Does the midpoint meaningfully raise the stakes or turn the story?",
	"Is the formatting professional, and does the page count fit the genre?",
	"How castable and specific are the principal roles?",
	"Does the climax pay off the setups planted in the first two acts?",
	"Where does the subtext do the work, and where is the dialogue on the nose?",
	"How strong is the concept's hook in a single logline?",
}

var screenplayDeepQuestions = []string{
	"Which sequences would be expensive to shoot, and do they justify their cost dramatically?",
	"How does the B-story interact with and pressure the A-story?",
	"Are act breaks placed where the story turns or where convention expects them?",
	"Which characters could be combined without losing dramatic function?",
	"Does every scene have an identifiable want, obstacle, and change?",
}

var queryLetterQuestions = []string{
	"Does the opening paragraph hook the agent with the manuscript's strongest element?",
	"Is the story summary focused on a single protagonist, conflict, and stakes?",
	"Are the comparable titles recent, accurate, and positioned credibly?",
	"Is the word count and genre statement appropriate for the market?",
	"Does the bio paragraph include relevant credentials without padding?",
	"Is the voice of the letter consistent with the voice of the manuscript?",
	"Are there any red flags an agent would screen out immediately?",
	"Does the letter stay within standard length and format conventions?",
	"Is the closing professional, and does it include what the agent needs next?",
	"How memorable is the pitch compared to a typical slush-pile query?",
}

var queryLetterDeepQuestions = []string{
	"Which sentences could be tightened without losing information?",
	"Does the summary spoil too much or too little of the plot?",
	"How well does the letter signal awareness of the agent's list?",
	"Is the personalization section specific or generic?",
	"What single change would most improve the letter's request rate?",
}
