package quote

type fieldKind int

const (
	fieldFrom fieldKind = iota + 1
	fieldSent
	fieldTo
	fieldCc
	fieldSubject
)

// language holds the phrasings one locale's mail clients use around quoted
// history. Attribution entries are full-line regular expressions; the other
// lists are literal phrases except mobile, which may use alternation.
type language struct {
	attribution []string
	original    []string
	forwarded   []string
	fields      map[fieldKind][]string
	mobile      []string
	disclaimers []string
}

var languages = map[string]language{
	"en": {
		attribution: []string{
			`^on\s.{1,250}\bwrote:$`,
			`^.{1,250}\bwrote on\s.{1,250}:$`,
		},
		original:  []string{"original message", "original e-mail", "original email"},
		forwarded: []string{"forwarded message", "begin forwarded message", "forwarded e-mail"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"from"},
			fieldSent:    {"sent", "date"},
			fieldTo:      {"to"},
			fieldCc:      {"cc", "bcc"},
			fieldSubject: {"subject"},
		},
		mobile: []string{
			`sent from my (iphone|ipad|android|mobile|mobile device|phone|samsung.*|galaxy.*|blackberry.*)`,
			`sent from (outlook|mail) for (ios|android|windows|windows 10|windows 11)`,
			`get outlook for (ios|android)`,
			`sent from yahoo mail.*`,
		},
		disclaimers: []string{
			"this email is intended only for",
			"this e-mail is intended only for",
			"this message is intended only for",
			"the information contained in this email",
			"the information contained in this e-mail",
			"the information contained in this message",
			"privileged/confidential information",
			"confidentiality notice",
		},
	},
	"da": {
		attribution: []string{
			`^(den|d\.|på)\s.{1,250}\bskrev\b.{0,250}:$`,
			`^\d{1,2}\.\s.{1,250}\bskrev\b.{0,250}:$`,
		},
		original:  []string{"oprindelig meddelelse", "original meddelelse", "oprindelig besked"},
		forwarded: []string{"videresendt meddelelse", "videresendt besked", "start på videresendt besked", "start på videresendt meddelelse"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"fra"},
			fieldSent:    {"sendt", "dato"},
			fieldTo:      {"til"},
			fieldCc:      {"cc", "bcc"},
			fieldSubject: {"emne"},
		},
		mobile: []string{
			`sendt fra min (iphone|ipad|mobil|mobiltelefon|android|telefon|samsung.*|galaxy.*)`,
			`sendt fra outlook til (ios|android)`,
			`hent outlook til (ios|android)`,
		},
		disclaimers: []string{
			"denne e-mail er alene til brug for adressaten",
			"denne e-mail kan indeholde fortrolig",
			"denne mail er alene til brug for adressaten",
		},
	},
	"no": {
		attribution: []string{
			`^(den|på)\s.{1,250}\bskrev\b.{0,250}:$`,
			`^\d{1,2}\.\s.{1,250}\bskrev\b.{0,250}:$`,
		},
		original:  []string{"opprinnelig melding", "original melding"},
		forwarded: []string{"videresendt melding", "videresendt e-post", "start på videresendt melding"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"fra"},
			fieldSent:    {"sendt", "dato"},
			fieldTo:      {"til"},
			fieldCc:      {"kopi", "cc"},
			fieldSubject: {"emne"},
		},
		mobile: []string{
			`sendt fra min (iphone|ipad|mobil|android|samsung.*)`,
			`hent outlook for (ios|android)`,
		},
		disclaimers: []string{
			"denne e-posten er kun ment for",
			"denne e-posten kan inneholde konfidensiell",
		},
	},
	"sv": {
		attribution: []string{
			`^(den|på)\s.{1,250}\bskrev\b.{0,250}:$`,
			`^\d{1,2}\s.{1,250}\bskrev\b.{0,250}:$`,
		},
		original:  []string{"ursprungligt meddelande", "originalmeddelande"},
		forwarded: []string{"vidarebefordrat meddelande", "vidarebefordrat brev", "början på vidarebefordrat meddelande"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"från"},
			fieldSent:    {"skickat", "datum"},
			fieldTo:      {"till"},
			fieldCc:      {"kopia", "cc"},
			fieldSubject: {"ämne"},
		},
		mobile: []string{
			`skickat från min (iphone|ipad|mobil|android|samsung.*)`,
			`hämta outlook för (ios|android)`,
		},
		disclaimers: []string{
			"detta e-postmeddelande är endast avsett för",
		},
	},
	"de": {
		attribution: []string{
			`^am\s.{1,250}\bschrieb\b.{0,250}:$`,
			`^.{1,250}\bschrieb am\s.{1,250}:$`,
		},
		original:  []string{"ursprüngliche nachricht", "original nachricht", "originalnachricht"},
		forwarded: []string{"weitergeleitete nachricht", "anfang der weitergeleiteten nachricht"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"von"},
			fieldSent:    {"gesendet", "datum"},
			fieldTo:      {"an"},
			fieldCc:      {"cc", "kopie"},
			fieldSubject: {"betreff"},
		},
		mobile: []string{
			`von meinem (iphone|ipad|samsung.*|android.*) gesendet`,
		},
		disclaimers: []string{
			"diese e-mail enthält vertrauliche",
			"diese nachricht enthält vertrauliche",
		},
	},
	"fr": {
		attribution: []string{
			`^le\s.{1,250}\ba écrit\s?:$`,
		},
		original:  []string{"message d'origine", "message original"},
		forwarded: []string{"message transféré", "début du message réexpédié", "début du message transféré"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"de"},
			fieldSent:    {"envoyé", "date"},
			fieldTo:      {"à"},
			fieldCc:      {"cc"},
			fieldSubject: {"objet"},
		},
		mobile: []string{
			`envoyé de mon (iphone|ipad|samsung.*|android.*)`,
		},
		disclaimers: []string{
			"ce message et toutes les pièces jointes sont confidentiels",
		},
	},
	"es": {
		attribution: []string{
			`^el\s.{1,250}\bescribió\s?:$`,
		},
		original:  []string{"mensaje original"},
		forwarded: []string{"mensaje reenviado"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"de"},
			fieldSent:    {"enviado", "fecha"},
			fieldTo:      {"para"},
			fieldCc:      {"cc"},
			fieldSubject: {"asunto"},
		},
		mobile: []string{
			`enviado desde mi (iphone|ipad|samsung.*|android.*)`,
		},
		disclaimers: []string{
			"este mensaje y sus anexos son confidenciales",
		},
	},
	"nl": {
		attribution: []string{
			`^op\s.{1,250}\bschreef\b.{0,250}:$`,
		},
		original:  []string{"oorspronkelijk bericht", "origineel bericht"},
		forwarded: []string{"doorgestuurd bericht", "begin doorgestuurd bericht"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"van"},
			fieldSent:    {"verzonden", "datum"},
			fieldTo:      {"aan"},
			fieldCc:      {"cc"},
			fieldSubject: {"onderwerp"},
		},
		mobile: []string{
			`verzonden (vanaf|met) mijn (iphone|ipad|samsung.*|android.*)`,
		},
		disclaimers: []string{
			"dit bericht is uitsluitend bestemd voor",
		},
	},
	"it": {
		attribution: []string{
			`^il\s.{1,250}\bha scritto\s?:$`,
		},
		original:  []string{"messaggio originale"},
		forwarded: []string{"messaggio inoltrato", "inizio messaggio inoltrato"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"da"},
			fieldSent:    {"inviato", "data"},
			fieldTo:      {"a"},
			fieldCc:      {"cc"},
			fieldSubject: {"oggetto"},
		},
		mobile: []string{
			`inviato da (iphone|ipad|il mio iphone|samsung.*|android.*)`,
		},
	},
	"pt": {
		attribution: []string{
			`^(em|no dia)\s.{1,250}\bescreveu\s?:$`,
		},
		original:  []string{"mensagem original"},
		forwarded: []string{"mensagem encaminhada", "início da mensagem encaminhada"},
		fields: map[fieldKind][]string{
			fieldFrom:    {"de"},
			fieldSent:    {"enviada", "enviado", "data"},
			fieldTo:      {"para"},
			fieldCc:      {"cc"},
			fieldSubject: {"assunto"},
		},
		mobile: []string{
			`enviado do meu (iphone|ipad|samsung.*|android.*)`,
		},
	},
}

// Languages lists the supported language codes.
func Languages() []string {
	return []string{"en", "da", "no", "sv", "de", "fr", "es", "nl", "it", "pt"}
}
