package provider

// Voice 可用发音人
type Voice struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Locale      string `json:"locale"`
	Gender      string `json:"gender"`
}

var arabicLocales = []string{
	"ar-SA", "ar-EG", "ar-AE", "ar-BH", "ar-DZ", "ar-IQ", "ar-JO", "ar-KW",
	"ar-LB", "ar-LY", "ar-MA", "ar-OM", "ar-QA", "ar-SY", "ar-TN", "ar-YE",
}

var englishLocales = []string{"en-US", "en-GB", "en-AU", "en-CA", "en-IN"}

var voiceCatalog = buildVoiceCatalog()

func buildVoiceCatalog() map[string][]Voice {
	catalog := make(map[string][]Voice)
	for _, loc := range arabicLocales {
		voices := []Voice{
			{Name: "ar-XA-Chirp3-HD-Kore", DisplayName: "كوري (أنثى)", Locale: loc, Gender: "Female"},
			{Name: "ar-XA-Chirp3-HD-Puck", DisplayName: "باك (ذكر)", Locale: loc, Gender: "Male"},
		}
		// 沙特方言提供完整的四个声音
		if loc == "ar-SA" {
			voices = append(voices,
				Voice{Name: "ar-XA-Chirp3-HD-Charon", DisplayName: "كارون (ذكر)", Locale: loc, Gender: "Male"},
				Voice{Name: "ar-XA-Chirp3-HD-Aoede", DisplayName: "أويدي (أنثى)", Locale: loc, Gender: "Female"},
			)
		}
		catalog[loc] = voices
	}
	for _, loc := range englishLocales {
		voices := []Voice{
			{Name: loc + "-Chirp3-HD-Kore", DisplayName: "Kore (Female)", Locale: loc, Gender: "Female"},
			{Name: loc + "-Chirp3-HD-Puck", DisplayName: "Puck (Male)", Locale: loc, Gender: "Male"},
		}
		if loc == "en-US" {
			voices = append(voices,
				Voice{Name: "en-US-Chirp3-HD-Charon", DisplayName: "Charon (Male)", Locale: loc, Gender: "Male"},
				Voice{Name: "en-US-Chirp3-HD-Aoede", DisplayName: "Aoede (Female)", Locale: loc, Gender: "Female"},
			)
		}
		catalog[loc] = voices
	}
	return catalog
}

// Voices 返回某个 locale 的发音人，未知 locale 返回空
func Voices(locale string) []Voice {
	voices := voiceCatalog[locale]
	out := make([]Voice, len(voices))
	copy(out, voices)
	return out
}

// Locales 返回所有支持的 locale
func Locales() []string {
	out := make([]string, 0, len(arabicLocales)+len(englishLocales))
	out = append(out, arabicLocales...)
	return append(out, englishLocales...)
}
