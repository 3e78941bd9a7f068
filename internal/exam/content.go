package exam

import "github.com/mbender/sprechtrainer/internal/model"

// Fixed examiner phrases. These are exam-language constants, not UI
// strings, so they stay out of the i18n bundle.
const (
	introGreeting   = "Guten Tag. Teil 1: Die Vorstellung. Erzählen Sie etwas über sich."
	pictureGreeting = "Guten Tag. Teil 2: Bildbeschreibung. Was sehen Sie?"

	// rePrompt is played when a recording yields no usable transcript.
	rePrompt        = "Ich habe Sie nicht verstanden. Bitte wiederholen."
	placeholderTurn = "..."
)

func planningGreeting(s model.PlanningScenario) string {
	return "Hallo. Teil 3: Gemeinsam planen. " + s.Title + ". Haben Sie Vorschläge?"
}

// pictureTopics are the search keywords for the picture-description
// module. Index-aligned with fallbackImages so the offline set stays
// on-topic.
var pictureTopics = []string{
	"restaurant",
	"hotel",
	"küche",
	"markt",
	"büro",
	"wäsche",
	"café",
	"besprechung",
}

// fallbackImages is the static image set used whenever the image
// provider fails, index-aligned with pictureTopics.
var fallbackImages = []string{
	"https://images.unsplash.com/photo-1517248135467-4c7edcad34c4?w=800&q=80",
	"https://images.unsplash.com/photo-1566073771259-6a8506099945?w=800&q=80",
	"https://images.unsplash.com/photo-1556910103-1c02745a30bf?w=800&q=80",
	"https://images.unsplash.com/photo-1542838132-92c53300491e?w=800&q=80",
	"https://images.unsplash.com/photo-1497215728101-856f4ea42174?w=800&q=80",
	"https://images.unsplash.com/photo-1570829460005-c840387bb1ca?w=800&q=80",
	"https://images.unsplash.com/photo-1554118811-1e0d58224f24?w=800&q=80",
	"https://images.unsplash.com/photo-1600880292203-757bb62b4baf?w=800&q=80",
}

var planningScenarios = []model.PlanningScenario{
	{
		Title:  "Ein Abschiedsfest",
		Points: []string{"Wann feiern wir?", "Wo feiern wir?", "Essen und Getränke", "Ein Geschenk"},
	},
	{
		Title:  "Eine Geburtstagsfeier für eine Kollegin",
		Points: []string{"Termin finden", "Ort der Feier", "Wer bringt was mit?", "Musik und Programm"},
	},
	{
		Title:  "Ein Ausflug am Wochenende",
		Points: []string{"Wohin fahren wir?", "Wie fahren wir?", "Was nehmen wir mit?", "Treffpunkt und Uhrzeit"},
	},
	{
		Title:  "Einen kranken Kollegen besuchen",
		Points: []string{"Wann besuchen wir ihn?", "Was bringen wir mit?", "Wie fahren wir dorthin?"},
	},
	{
		Title:  "Ein gemeinsames Essen mit dem Deutschkurs",
		Points: []string{"Restaurant oder zu Hause?", "Welches Essen?", "Wer organisiert was?", "Termin"},
	},
}

var writingTasks = []model.WritingTask{
	{
		Title:  "Brief an die Vermieterin",
		Prompt: "Ihre Heizung ist seit drei Tagen kaputt. Schreiben Sie an Ihre Vermieterin, Frau Schmidt.",
		Points: []string{"Grund des Schreibens", "Seit wann ist die Heizung kaputt?", "Bitte um schnelle Reparatur", "Wann sind Sie zu Hause?"},
	},
	{
		Title:  "Entschuldigung für die Schule",
		Prompt: "Ihr Sohn ist krank und kann nicht zur Schule gehen. Schreiben Sie an die Klassenlehrerin.",
		Points: []string{"Warum schreiben Sie?", "Was fehlt Ihrem Sohn?", "Wie lange fehlt er?", "Bitte um die Hausaufgaben"},
	},
	{
		Title:  "Antwort auf eine Einladung",
		Prompt: "Eine Freundin hat Sie zu ihrer Hochzeit eingeladen. Antworten Sie auf die Einladung.",
		Points: []string{"Danken Sie für die Einladung", "Sagen Sie zu oder ab", "Fragen Sie nach einem Geschenkwunsch", "Bieten Sie Hilfe an"},
	},
	{
		Title:  "Termin verschieben",
		Prompt: "Sie haben einen Termin bei der Ausländerbehörde, können aber nicht kommen. Schreiben Sie an die Behörde.",
		Points: []string{"Grund des Schreibens", "Warum können Sie nicht kommen?", "Bitte um einen neuen Termin", "Ihre Kontaktdaten"},
	},
}

// closingMarkers end the planning dialogue when the examiner's reply
// contains one of them (matched case-insensitively).
var closingMarkers = []string{
	"auf wiedersehen",
	"tschüss",
	"vielen dank für das gespräch",
	"das war's",
	"viel erfolg",
}
