package view

import "strings"

// User-facing texts that ship in English only.
const (
	textIssuePrompt     = "Please describe the issue: "
	textIssueThanks     = "Thank you for reporting the issue. You can continue chatting."
	textIssueFailed     = "Sorry, I could not record your issue report. Please try again later."
	textHistoryCleared  = "Chat history cleared."
	textModelPromptTail = "\n\nSelect a model:"
	textDefaultModel    = "Default"
)

// localized holds per-language variants of the error and unsupported-content
// replies, keyed by message id then language.
var localized = map[string]map[string]string{
	"error": {
		"en": "I apologize, but an error occurred. Please try again or contact support if the issue persists.",
		"ru": "Извините, произошла ошибка. Пожалуйста, попробуйте еще раз или обратитесь в поддержку, если проблема не устранена.",
		"he": "אני מתנצל, אך אירעה שגיאה. אנא נסה שוב או פנה לתמיכה אם הבעיה נמשכת.",
	},
	"unsupported_content": {
		"en": "Sorry, I can't process this type of content. Please send text, a photo, a document (PDF, DOC, DOCX, TXT) or a voice message.",
		"ru": "Извините, я не могу обработать этот тип контента. Пожалуйста, отправьте текст, фото, документ (PDF, DOC, DOCX, TXT) или голосовое сообщение.",
		"he": "מצטער, אני לא יכול לעבד סוג תוכן זה. אנא שלח טקסט, תמונה, מסמך (PDF, DOC, DOCX, TXT) או הודעה קולית.",
	},
	"unsupported_content_text_only": {
		"en": "I can only process text messages at the moment. Please send me a text message instead of photos, videos, or other media. 📝",
		"ru": "Я могу обрабатывать только текстовые сообщения. Пожалуйста, отправьте мне текстовое сообщение вместо фотографий, видео или других медиафайлов. 📝",
		"he": "אני יכול לעבד רק הודעות טקסט כרגע. אנא שלח לי הודעת טקסט במקום תמונות, סרטונים או מדיה אחרת. 📝",
	},
}

// languageMapping normalizes platform language codes to supported languages.
// "iw" is the legacy Hebrew code some clients still send.
var languageMapping = map[string]string{
	"ru": "ru",
	"he": "he",
	"iw": "he",
}

// localizedText returns a message in the user's language, falling back to
// English when the language or key is unknown.
func localizedText(key string, languageCode string) string {
	lang, ok := languageMapping[strings.ToLower(languageCode)]
	if !ok {
		lang = "en"
	}

	byLang, ok := localized[key]
	if !ok {
		return ""
	}

	if text, ok := byLang[lang]; ok {
		return text
	}

	return byLang["en"]
}
