package service

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/internal/providers/email"
)

var templateFuncs = template.FuncMap{
	"money": formatMoney,
}

// formatMoney renders minor currency units as a dollar amount with
// thousands separators.
func formatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole := fmt.Sprintf("%d", minor/100)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, grouped.String(), minor%100)
}

func render(cfg config.NotificationConfig, record domain.Record) (email.Message, error) {
	subject, err := execute("subject", cfg.SubjectTemplate, record)
	if err != nil {
		return email.Message{}, err
	}
	body, err := execute("body", cfg.BodyTemplate, record)
	if err != nil {
		return email.Message{}, err
	}
	if name := strings.TrimSpace(cfg.SenderName); name != "" {
		body = strings.TrimRight(body, "\n") + "\n\n" + name + "\n"
	}
	return email.Message{
		To:      strings.TrimSpace(record.TenantEmail),
		Subject: strings.Join(strings.Fields(subject), " "),
		Text:    body,
	}, nil
}

func execute(name, text string, record domain.Record) (string, error) {
	tmpl, err := template.New(name).Funcs(templateFuncs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, record); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return out.String(), nil
}
