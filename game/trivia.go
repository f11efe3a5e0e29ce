package game

// Question is one multiple-choice trivia question. Correct indexes Options.
type Question struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
	Correct int      `json:"correct"`
}

const defaultTriviaCategory = "animals"

// Five fixed-order questions per category. Question sets are generated
// deterministically per client from the room category and are not
// synchronized beyond the shared timer: every player answers its own copy
// and results merge on score only.
var triviaBank = map[string][]Question{
	"animals": {
		{Text: "What is the largest land animal?", Options: []string{"Elephant", "Giraffe", "Rhino", "Hippo"}, Correct: 0},
		{Text: "How many legs does a spider have?", Options: []string{"6", "8", "10", "12"}, Correct: 1},
		{Text: "What is the fastest land animal?", Options: []string{"Lion", "Cheetah", "Leopard", "Tiger"}, Correct: 1},
		{Text: "Which animal is known as the 'King of the Jungle'?", Options: []string{"Tiger", "Lion", "Bear", "Gorilla"}, Correct: 1},
		{Text: "What do pandas primarily eat?", Options: []string{"Meat", "Fish", "Bamboo", "Berries"}, Correct: 2},
	},
	"football": {
		{Text: "How many players are on a football team?", Options: []string{"9", "10", "11", "12"}, Correct: 2},
		{Text: "Who won the 2018 FIFA World Cup?", Options: []string{"Brazil", "Germany", "France", "Argentina"}, Correct: 2},
		{Text: "What is the maximum duration of a football match?", Options: []string{"80 mins", "90 mins", "100 mins", "120 mins"}, Correct: 1},
		{Text: "Which country has won the most World Cups?", Options: []string{"Germany", "Argentina", "Brazil", "Italy"}, Correct: 2},
		{Text: "What color card does a referee show for a serious foul?", Options: []string{"Yellow", "Red", "Blue", "Green"}, Correct: 1},
	},
	"history": {
		{Text: "In which year did World War II end?", Options: []string{"1943", "1944", "1945", "1946"}, Correct: 2},
		{Text: "Who was the first President of the United States?", Options: []string{"Thomas Jefferson", "George Washington", "John Adams", "Benjamin Franklin"}, Correct: 1},
		{Text: "The Great Wall of China was built to protect against which group?", Options: []string{"Mongols", "Japanese", "British", "French"}, Correct: 0},
		{Text: "Which empire built Machu Picchu?", Options: []string{"Maya", "Aztec", "Inca", "Olmec"}, Correct: 2},
		{Text: "Who painted the Mona Lisa?", Options: []string{"Michelangelo", "Leonardo da Vinci", "Raphael", "Donatello"}, Correct: 1},
	},
	"science": {
		{Text: "What is the chemical symbol for water?", Options: []string{"H2O", "CO2", "O2", "N2"}, Correct: 0},
		{Text: "How many planets are in our solar system?", Options: []string{"7", "8", "9", "10"}, Correct: 1},
		{Text: "What is the speed of light?", Options: []string{"300,000 km/s", "150,000 km/s", "500,000 km/s", "1,000,000 km/s"}, Correct: 0},
		{Text: "What is the largest organ in the human body?", Options: []string{"Heart", "Brain", "Liver", "Skin"}, Correct: 3},
		{Text: "What gas do plants absorb from the atmosphere?", Options: []string{"Oxygen", "Nitrogen", "Carbon Dioxide", "Hydrogen"}, Correct: 2},
	},
	"entertainment": {
		{Text: "Which movie won the Oscar for Best Picture in 2020?", Options: []string{"Joker", "1917", "Parasite", "Once Upon a Time"}, Correct: 2},
		{Text: "Who is known as the 'King of Pop'?", Options: []string{"Elvis Presley", "Michael Jackson", "Prince", "Madonna"}, Correct: 1},
		{Text: "How many Harry Potter books are there?", Options: []string{"5", "6", "7", "8"}, Correct: 2},
		{Text: "Which streaming service created Stranger Things?", Options: []string{"Hulu", "Amazon Prime", "Netflix", "Disney+"}, Correct: 2},
		{Text: "Who directed the movie Inception?", Options: []string{"Steven Spielberg", "Christopher Nolan", "James Cameron", "Quentin Tarantino"}, Correct: 1},
	},
}

// QuestionsFor returns the fixed question sequence for category. Unknown
// categories fall back to the default set.
func QuestionsFor(category string) []Question {
	qs, ok := triviaBank[category]
	if !ok {
		qs = triviaBank[defaultTriviaCategory]
	}
	out := make([]Question, len(qs))
	copy(out, qs)
	return out
}

// TriviaRun is one client's round loop over its own question copy: one
// answer per question, score incremented on a correct pick, done when the
// sequence is exhausted. It is rebuilt from the category on reload, never
// persisted.
type TriviaRun struct {
	questions []Question
	current   int
	score     int
}

func NewTriviaRun(category string) *TriviaRun {
	return &TriviaRun{questions: QuestionsFor(category)}
}

// Current returns the active question and its index; ok is false once the
// run is done.
func (t *TriviaRun) Current() (q Question, index int, ok bool) {
	if t.current >= len(t.questions) {
		return Question{}, t.current, false
	}
	return t.questions[t.current], t.current, true
}

// Answer records exactly one selection for the active question and advances.
// Selections after the run is done are ignored.
func (t *TriviaRun) Answer(option int) (correct, done bool) {
	q, _, ok := t.Current()
	if !ok {
		return false, true
	}
	correct = option == q.Correct
	if correct {
		t.score++
	}
	t.current++
	return correct, t.current >= len(t.questions)
}

func (t *TriviaRun) Score() int { return t.score }

func (t *TriviaRun) Done() bool { return t.current >= len(t.questions) }
