package email

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	domnotif "github.com/Zhima-Mochi/winestore/internal/domain/notification"
	"github.com/Zhima-Mochi/winestore/internal/observability"
	"github.com/Zhima-Mochi/winestore/internal/observability/logctx"
)

var ErrUnknownTemplate = errors.New("email: unknown template")

var subjects = map[string]string{
	domnotif.TemplateOrderPaid:      "Your order is confirmed",
	domnotif.TemplateOrderCancelled: "Your order was cancelled",
}

// LogSender renders templated email into the structured log instead of an SMTP relay.
type LogSender struct {
	log observability.Logger
}

func NewLogSender(logger observability.Logger) *LogSender {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &LogSender{log: logger.With(observability.F("component", "email"))}
}

func (s *LogSender) Send(ctx context.Context, template, recipient string, data map[string]any) error {
	subject, ok := subjects[template]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
	}
	if strings.TrimSpace(recipient) == "" {
		return errors.New("email: recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logctx.FromOr(ctx, s.log).Info("email_sent",
		observability.F("template", template),
		observability.F("recipient", recipient),
		observability.F("subject", subject),
		observability.F("body", render(data)),
	)
	return nil
}

func render(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s=%v", k, data[k])
	}
	return b.String()
}
