package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lalithlochan/orderpulse/internal/db"
)

// TemplateStore looks up template rows for exact (trigger, scope, language)
// combinations.
type TemplateStore interface {
	FindTemplate(ctx context.Context, triggerKey string, scopeID, languageID *string) (db.NotificationTemplate, bool, error)
}

// Rendered is the resolved and variable-substituted notification text.
type Rendered struct {
	Subject string
	HTML    string
	Plain   string
}

// TemplateResolver resolves subject/body text for a (trigger, scope,
// language) request with scope fallback, synthesizing a minimal default when
// nothing matches.
type TemplateResolver struct {
	store  TemplateStore
	logger *zap.Logger
}

func NewTemplateResolver(store TemplateStore, logger *zap.Logger) *TemplateResolver {
	return &TemplateResolver{store: store, logger: logger}
}

// Resolve walks the fallback chain (scope, language) -> (scope, nil) ->
// (nil, language) -> (nil, nil); the first matching row wins. "No template"
// is a first-class branch, not an error: the synthesized default covers it.
func (r *TemplateResolver) Resolve(ctx context.Context, triggerKey string, scopeID, languageID *string, variables map[string]any) (Rendered, error) {
	type lookup struct {
		scope *string
		lang  *string
	}

	candidates := []lookup{}
	if scopeID != nil && languageID != nil {
		candidates = append(candidates, lookup{scopeID, languageID})
	}
	if scopeID != nil {
		candidates = append(candidates, lookup{scopeID, nil})
	}
	if languageID != nil {
		candidates = append(candidates, lookup{nil, languageID})
	}
	candidates = append(candidates, lookup{nil, nil})

	for _, c := range candidates {
		tmpl, found, err := r.store.FindTemplate(ctx, triggerKey, c.scope, c.lang)
		if err != nil {
			return Rendered{}, fmt.Errorf("resolve template for %s: %w", triggerKey, err)
		}
		if found {
			return Rendered{
				Subject: render(tmpl.Subject, variables),
				HTML:    render(tmpl.ContentHTML, variables),
				Plain:   render(tmpl.ContentPlain, variables),
			}, nil
		}
	}

	r.logger.Debug("no template matched, synthesizing default",
		zap.String("trigger_key", triggerKey),
	)

	return defaultTemplate(triggerKey, variables), nil
}

func defaultTemplate(triggerKey string, variables map[string]any) Rendered {
	orderID, _ := scalarString(variables["external_order_id"])
	eventKey, _ := scalarString(variables["event_key"])

	subject := fmt.Sprintf("Notification: %s", triggerKey)
	if orderID != "" {
		subject = fmt.Sprintf("Notification: %s (order %s)", triggerKey, orderID)
	}

	body := fmt.Sprintf("Trigger: %s\nOrder: %s\nEvent: %s\n", triggerKey, orderID, eventKey)

	return Rendered{
		Subject: subject,
		HTML:    "<pre>" + body + "</pre>",
		Plain:   body,
	}
}

// render substitutes {{ key }} and {{key}} placeholders with the string form
// of scalar variables. Non-scalar variables stay verbatim so structured data
// never leaks into free text.
func render(text string, variables map[string]any) string {
	for key, value := range variables {
		str, ok := scalarString(value)
		if !ok {
			continue
		}
		text = strings.ReplaceAll(text, "{{ "+key+" }}", str)
		text = strings.ReplaceAll(text, "{{"+key+"}}", str)
	}
	return text
}

func scalarString(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
