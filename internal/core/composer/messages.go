package composer

import (
	"strings"

	"hajj-assistant/internal/models"
)

// Message keys.
const (
	msgPlace              = "place"
	msgVerifyAuthorized   = "verify_authorized"
	msgVerifyNot          = "verify_not_authorized"
	msgVerifyUnknown      = "verify_unknown"
	msgAmbiguous          = "ambiguous"
	msgAmbiguousQuestion  = "ambiguous_question"
	msgNoMatch            = "no_match"
	msgAskAgencyName      = "ask_agency_name"
	msgResults            = "results"
	msgTruncated          = "truncated"
	msgNoResults          = "no_results"
	msgAskQueryDetail     = "ask_query_detail"
	msgQueryFailed        = "query_failed"
	msgReportFailed       = "report_failed"
	msgInputEmpty         = "input_empty"
	msgInputTooLong       = "input_too_long"
	msgInputInvalid       = "input_invalid"
	msgGreeting           = "greeting"
	msgStartOver          = "start_over"
	msgGeneralFollowUp    = "general_follow_up"
	msgReportAgency       = "report_agency"
	msgReportCity         = "report_city"
	msgReportDetails      = "report_details"
	msgReportContact      = "report_contact"
	msgReportConfirm      = "report_confirm"
	msgReportConfirmAgain = "report_confirm_again"
	msgAnonymous          = "anonymous"
	msgReportFiled        = "report_filed"
	msgReportCancelled    = "report_cancelled"
	msgReportRetry        = "report_retry"
	msgReportContactRetry = "report_contact_retry"
	msgStats              = "stats"
)

var catalogue = map[models.Language]map[string]string{
	models.LanguageEnglish: {
		msgPlace:              " in {{city}}",
		msgVerifyAuthorized:   "{{name}}{{place}} is an authorized Hajj agency.",
		msgVerifyNot:          "{{name}}{{place}} is NOT an authorized Hajj agency. Please do not make any payment to it.",
		msgVerifyUnknown:      "{{name}}{{place}} is in the registry, but its authorization status is not recorded. Please check with the Ministry of Hajj before paying.",
		msgAmbiguous:          "I found several agencies with similar names:",
		msgAmbiguousQuestion:  "Which one did you mean? Reply with its number.",
		msgNoMatch:            "I could not find an agency named \"{{name}}\" in the registry. Please check the spelling. Treat any agency that is not listed with caution.",
		msgAskAgencyName:      "Which agency would you like me to check? Please tell me its name.",
		msgResults:            "Found {{count}} matching agencies ({{authorized}} authorized).",
		msgTruncated:          "Only the first {{count}} are shown.",
		msgNoResults:          "No matching agencies found. Try rephrasing the question or broadening the search.",
		msgAskQueryDetail:     "Could you be more specific? For example, name a city, a country or a minimum rating.",
		msgQueryFailed:        "Sorry, I could not look that up right now. Please try again in a moment.",
		msgReportFailed:       "Sorry, your report could not be saved. Reply yes to try again.",
		msgInputEmpty:         "Please enter a question.",
		msgInputTooLong:       "Your question is too long (max 500 characters).",
		msgInputInvalid:       "Invalid characters were detected in your question.",
		msgGreeting:           "Hello! I can check whether a Hajj agency is authorized, search agencies by city, country or rating, and help you report a fraudulent agency. What would you like to do?",
		msgGeneralFollowUp:    "You can also ask me to verify an agency by name before paying it.",
		msgStartOver:          "Let's start over. You can ask me to verify an agency, list agencies or report a fraud.",
		msgReportAgency:       "I'm sorry this happened. Let's file a report. What is the name of the agency?",
		msgReportCity:         "In which city is the agency located?",
		msgReportDetails:      "What happened? Please describe the incident, including any payments or promises.",
		msgReportContact:      "How can we reach you? Send an email or phone number, or type \"skip\" to stay anonymous.",
		msgReportConfirm:      "Please confirm your report:\nAgency: {{agency}}\nCity: {{city}}\nDetails: {{details}}\nContact: {{contact}}",
		msgReportConfirmAgain: "Reply yes to submit the report or no to cancel.",
		msgAnonymous:          "anonymous",
		msgReportFiled:        "Thank you. Your report has been submitted. Reference: {{ref}}.",
		msgReportCancelled:    "Your report was cancelled. Nothing was submitted.",
		msgReportRetry:        "That answer looks incomplete.",
		msgReportContactRetry: "That does not look like an email address or a phone number.",
		msgStats:              "The registry lists {{total}} agencies, {{authorized}} of them authorized, in {{countries}} countries and {{cities}} cities.",
	},
	models.LanguageArabic: {
		msgPlace:              " في {{city}}",
		msgVerifyAuthorized:   "{{name}}{{place}} شركة حج معتمدة.",
		msgVerifyNot:          "{{name}}{{place}} ليست شركة حج معتمدة. يرجى عدم دفع أي مبالغ لها.",
		msgVerifyUnknown:      "{{name}}{{place}} مسجلة لدينا، لكن حالة اعتمادها غير معروفة. يرجى التحقق من وزارة الحج قبل الدفع.",
		msgAmbiguous:          "وجدت عدة شركات بأسماء متشابهة:",
		msgAmbiguousQuestion:  "أي واحدة تقصد؟ أرسل رقمها.",
		msgNoMatch:            "لم أجد شركة باسم \"{{name}}\" في السجل. تأكد من كتابة الاسم، وتعامل بحذر مع أي شركة غير مدرجة.",
		msgAskAgencyName:      "ما اسم الشركة التي تريد التحقق منها؟",
		msgResults:            "تم العثور على {{count}} شركة مطابقة ({{authorized}} معتمدة).",
		msgTruncated:          "تُعرض أول {{count}} نتيجة فقط.",
		msgNoResults:          "لم يتم العثور على نتائج. حاول إعادة صياغة السؤال أو توسيع نطاق البحث.",
		msgAskQueryDetail:     "هل يمكنك التحديد أكثر؟ مثلاً اذكر مدينة أو دولة أو حداً أدنى للتقييم.",
		msgQueryFailed:        "عذراً، تعذر البحث الآن. يرجى المحاولة مرة أخرى بعد قليل.",
		msgReportFailed:       "عذراً، تعذر حفظ بلاغك. أرسل \"نعم\" للمحاولة مرة أخرى.",
		msgInputEmpty:         "الرجاء إدخال سؤال.",
		msgInputTooLong:       "السؤال طويل جداً (الحد الأقصى 500 حرف).",
		msgInputInvalid:       "تم اكتشاف أحرف غير صالحة في سؤالك.",
		msgGreeting:           "مرحباً! أستطيع التحقق من اعتماد شركات الحج، والبحث عن الشركات حسب المدينة أو الدولة أو التقييم، ومساعدتك في الإبلاغ عن شركة احتيالية. كيف يمكنني مساعدتك؟",
		msgGeneralFollowUp:    "يمكنك أيضاً أن تطلب مني التحقق من أي شركة باسمها قبل الدفع لها.",
		msgStartOver:          "لنبدأ من جديد. يمكنك أن تطلب التحقق من شركة أو عرض الشركات أو الإبلاغ عن احتيال.",
		msgReportAgency:       "نأسف لما حدث. لنقدم بلاغاً. ما اسم الشركة؟",
		msgReportCity:         "في أي مدينة تقع الشركة؟",
		msgReportDetails:      "ماذا حدث؟ يرجى وصف ما جرى، بما في ذلك أي مبالغ مدفوعة أو وعود.",
		msgReportContact:      "كيف يمكننا التواصل معك؟ أرسل بريداً إلكترونياً أو رقم هاتف، أو اكتب \"تخطي\" للبقاء مجهولاً.",
		msgReportConfirm:      "يرجى تأكيد البلاغ:\nالشركة: {{agency}}\nالمدينة: {{city}}\nالتفاصيل: {{details}}\nالتواصل: {{contact}}",
		msgReportConfirmAgain: "أرسل \"نعم\" لتقديم البلاغ أو \"لا\" للإلغاء.",
		msgAnonymous:          "مجهول",
		msgReportFiled:        "شكراً لك. تم تقديم بلاغك. رقم المرجع: {{ref}}.",
		msgReportCancelled:    "تم إلغاء البلاغ ولم يُرسل شيء.",
		msgReportRetry:        "يبدو أن الإجابة غير مكتملة.",
		msgReportContactRetry: "لا يبدو هذا بريداً إلكترونياً أو رقم هاتف صالحاً.",
		msgStats:              "يضم السجل {{total}} شركة، منها {{authorized}} معتمدة، في {{countries}} دولة و{{cities}} مدينة.",
	},
	models.LanguageUrdu: {
		msgPlace:              " ({{city}})",
		msgVerifyAuthorized:   "{{name}}{{place}} ایک منظور شدہ حج ایجنسی ہے۔",
		msgVerifyNot:          "{{name}}{{place}} منظور شدہ حج ایجنسی نہیں ہے۔ براہ کرم اسے کوئی رقم ادا نہ کریں۔",
		msgVerifyUnknown:      "{{name}}{{place}} ہمارے ریکارڈ میں موجود ہے، لیکن اس کی منظوری کی حیثیت درج نہیں۔ ادائیگی سے پہلے وزارت حج سے تصدیق کریں۔",
		msgAmbiguous:          "ملتے جلتے ناموں والی کئی ایجنسیاں ملیں:",
		msgAmbiguousQuestion:  "آپ کی مراد کون سی ہے؟ اس کا نمبر بھیجیں۔",
		msgNoMatch:            "رجسٹر میں \"{{name}}\" نام کی کوئی ایجنسی نہیں ملی۔ براہ کرم ہجے چیک کریں اور غیر درج ایجنسی سے محتاط رہیں۔",
		msgAskAgencyName:      "آپ کس ایجنسی کی تصدیق کرنا چاہتے ہیں؟ براہ کرم اس کا نام بتائیں۔",
		msgResults:            "{{count}} مطابقت رکھنے والی ایجنسیاں ملیں ({{authorized}} منظور شدہ)۔",
		msgTruncated:          "صرف پہلی {{count}} دکھائی گئی ہیں۔",
		msgNoResults:          "کوئی نتیجہ نہیں ملا۔ سوال دوبارہ لکھیں یا تلاش کا دائرہ بڑھائیں۔",
		msgAskQueryDetail:     "براہ کرم مزید وضاحت کریں، مثلاً شہر، ملک یا کم از کم ریٹنگ بتائیں۔",
		msgQueryFailed:        "معذرت، ابھی معلومات حاصل نہیں ہو سکیں۔ براہ کرم تھوڑی دیر بعد دوبارہ کوشش کریں۔",
		msgReportFailed:       "معذرت، آپ کی رپورٹ محفوظ نہیں ہو سکی۔ دوبارہ کوشش کے لیے \"ہاں\" بھیجیں۔",
		msgInputEmpty:         "براہ کرم سوال درج کریں۔",
		msgInputTooLong:       "سوال بہت لمبا ہے (زیادہ سے زیادہ 500 حروف)۔",
		msgInputInvalid:       "آپ کے سوال میں غلط حروف پائے گئے۔",
		msgGreeting:           "السلام علیکم! میں حج ایجنسی کی منظوری کی تصدیق کر سکتا ہوں، شہر، ملک یا ریٹنگ کے لحاظ سے ایجنسیاں تلاش کر سکتا ہوں اور دھوکہ باز ایجنسی کی رپورٹ میں مدد کر سکتا ہوں۔ آپ کیا کرنا چاہیں گے؟",
		msgGeneralFollowUp:    "ادائیگی سے پہلے آپ مجھ سے کسی بھی ایجنسی کی نام سے تصدیق بھی کروا سکتے ہیں۔",
		msgStartOver:          "آئیے دوبارہ شروع کریں۔ آپ کسی ایجنسی کی تصدیق، ایجنسیوں کی فہرست یا دھوکے کی رپورٹ کا کہہ سکتے ہیں۔",
		msgReportAgency:       "ہمیں افسوس ہے۔ آئیے رپورٹ درج کریں۔ ایجنسی کا نام کیا ہے؟",
		msgReportCity:         "ایجنسی کس شہر میں ہے؟",
		msgReportDetails:      "کیا ہوا؟ براہ کرم واقعہ بیان کریں، بشمول کوئی ادائیگی یا وعدے۔",
		msgReportContact:      "ہم آپ سے کیسے رابطہ کریں؟ ای میل یا فون نمبر بھیجیں، یا گمنام رہنے کے لیے \"skip\" لکھیں۔",
		msgReportConfirm:      "براہ کرم اپنی رپورٹ کی تصدیق کریں:\nایجنسی: {{agency}}\nشہر: {{city}}\nتفصیل: {{details}}\nرابطہ: {{contact}}",
		msgReportConfirmAgain: "رپورٹ جمع کرانے کے لیے \"ہاں\" یا منسوخ کرنے کے لیے \"نہیں\" بھیجیں۔",
		msgAnonymous:          "گمنام",
		msgReportFiled:        "شکریہ۔ آپ کی رپورٹ جمع ہو گئی ہے۔ حوالہ نمبر: {{ref}}۔",
		msgReportCancelled:    "رپورٹ منسوخ کر دی گئی۔ کچھ بھی جمع نہیں ہوا۔",
		msgReportRetry:        "یہ جواب نامکمل لگتا ہے۔",
		msgReportContactRetry: "یہ درست ای میل یا فون نمبر نہیں لگتا۔",
		msgStats:              "رجسٹر میں {{total}} ایجنسیاں ہیں جن میں سے {{authorized}} منظور شدہ ہیں، {{countries}} ممالک اور {{cities}} شہروں میں۔",
	},
}

// text looks up key for lang, falling back to English.
func text(lang models.Language, key string) string {
	if msgs, ok := catalogue[lang]; ok {
		if s, ok := msgs[key]; ok {
			return s
		}
	}
	return catalogue[models.LanguageEnglish][key]
}

// substitute replaces {{key}} placeholders. Unknown placeholders are left as
// they are.
func substitute(tmpl string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	var b strings.Builder
	for {
		start := strings.Index(tmpl, "{{")
		if start < 0 {
			break
		}
		end := strings.Index(tmpl[start:], "}}")
		if end < 0 {
			break
		}
		end += start
		key := strings.TrimSpace(tmpl[start+2 : end])
		b.WriteString(tmpl[:start])
		if v, ok := vars[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(tmpl[start : end+2])
		}
		tmpl = tmpl[end+2:]
	}
	b.WriteString(tmpl)
	return b.String()
}
