package i18n

import (
	"embed"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/amoylab/umbra/internal/common/cnst"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var builtin embed.FS

var (
	translatorMu sync.RWMutex
	translator   *I18n
	defaultLang  = cnst.LangDefault

	supportedLangs = []string{cnst.LangEN, cnst.LangRU}
)

// SetDefaultLanguage sets the fallback language for messages
func SetDefaultLanguage(lang string) {
	translatorMu.Lock()
	defer translatorMu.Unlock()
	defaultLang = normalizeLangWith(lang, cnst.LangDefault)
}

// InitTranslator builds the global translator from the embedded bundles and,
// when extraDir is set, the TOML files found there.
func InitTranslator(extraDir string) error {
	t := NewI18n(language.English)
	if err := t.LoadEmbedded(); err != nil {
		return err
	}
	if extraDir != "" {
		if err := t.LoadTranslations(extraDir); err != nil {
			return err
		}
	}

	translatorMu.Lock()
	translator = t
	translatorMu.Unlock()
	return nil
}

// GetTranslator returns the global translator, building it from the embedded
// bundles on first use
func GetTranslator() *I18n {
	translatorMu.RLock()
	t := translator
	translatorMu.RUnlock()
	if t != nil {
		return t
	}
	_ = InitTranslator("")

	translatorMu.RLock()
	defer translatorMu.RUnlock()
	return translator
}

// I18n manages internationalization and translations
type I18n struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
}

// NewI18n creates a new I18n instance with the specified default language
func NewI18n(defaultLang language.Tag) *I18n {
	bundle := i18n.NewBundle(defaultLang)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	return &I18n{
		bundle:      bundle,
		defaultLang: defaultLang,
	}
}

// LoadEmbedded loads the translations compiled into the binary
func (i *I18n) LoadEmbedded() error {
	entries, err := builtin.ReadDir("translations")
	if err != nil {
		return fmt.Errorf("failed to read embedded translations: %w", err)
	}
	for _, entry := range entries {
		if _, err := i.bundle.LoadMessageFileFS(builtin, "translations/"+entry.Name()); err != nil {
			return fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// LoadTranslations loads translation files from the specified directory
func (i *I18n) LoadTranslations(translationsDir string) error {
	files, err := os.ReadDir(translationsDir)
	if err != nil {
		return fmt.Errorf("failed to read translations directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".toml") {
			continue
		}

		filePath := filepath.Join(translationsDir, file.Name())
		if _, err := i.bundle.LoadMessageFile(filePath); err != nil {
			return fmt.Errorf("failed to load %s: %w", filePath, err)
		}
	}

	return nil
}

// Translate returns a localized string for the given message ID and language
func (i *I18n) Translate(msgID string, lang string, templateData map[string]any) string {
	localizer := i18n.NewLocalizer(i.bundle, lang, i.defaultLang.String())

	lc := &i18n.LocalizeConfig{
		MessageID: msgID,
	}
	if len(templateData) > 0 {
		lc.TemplateData = templateData
	}

	msg, err := localizer.Localize(lc)
	if err != nil {
		return msgID
	}
	return msg
}

// TranslateContext returns a localized string using the Gin context's language preference
func (i *I18n) TranslateContext(c *gin.Context, msgID string, templateData map[string]any) string {
	return i.Translate(msgID, contextLang(c), templateData)
}

// LanguageFromRequest picks the response language from X-Lang, then Accept-Language
func LanguageFromRequest(r *http.Request) string {
	if lang := r.Header.Get(cnst.XLang); lang != "" {
		return normalizeLang(lang)
	}

	if acceptLang := r.Header.Get("Accept-Language"); acceptLang != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLang)
		if err == nil && len(tags) > 0 {
			return normalizeLang(tags[0].String())
		}
	}

	return currentDefault()
}

func contextLang(c *gin.Context) string {
	if lang, ok := c.Get(cnst.XLang); ok {
		if s, ok := lang.(string); ok && s != "" {
			return s
		}
	}
	return currentDefault()
}

func currentDefault() string {
	translatorMu.RLock()
	defer translatorMu.RUnlock()
	return defaultLang
}

// normalizeLang reduces a language tag to a supported base language
func normalizeLang(lang string) string {
	return normalizeLangWith(lang, currentDefault())
}

func normalizeLangWith(lang, fallback string) string {
	code := strings.ToLower(strings.Split(lang, "-")[0])
	for _, supported := range supportedLangs {
		if code == supported {
			return code
		}
	}
	return fallback
}

// TranslateMessage translates a message ID using the context's language preference
func TranslateMessage(c *gin.Context, msgID string, data map[string]any) string {
	if t := GetTranslator(); t != nil {
		return t.Translate(msgID, contextLang(c), data)
	}
	return msgID
}
