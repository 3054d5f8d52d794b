package units

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"text/template"

	"github.com/nomis52/orderflow/activity"
	"github.com/nomis52/orderflow/orchestrator"
)

var (
	ErrMissingSender    = errors.New("email sender address is not set")
	ErrMissingDirectory = errors.New("customer directory is not set")
	ErrMissingMailer    = errors.New("mailer is not set")
)

const (
	emailDir     = "emails"
	emailLogFile = "email_log.json"
)

const exceptionEmail = `From: {{.From}}
To: {{.To}}
Subject: {{.Subject}}

Dear {{.CustomerName}},

We could not process purchase order {{.Order.ID}} dated {{.Order.OrderDate.Format "2006-01-02"}} because of the following issue(s):
{{range .Issues}}
  - {{.SKU}}: {{.Message}}{{end}}

Please review the order and send a corrected version.

Regards,
Order Processing
`

type emailData struct {
	From         string
	To           string
	Subject      string
	CustomerName string
	Order        PurchaseOrder
	Issues       []Issue
}

// ExceptionResponder writes and sends one email per order exception.
type ExceptionResponder struct {
	OutputDir string
	From      string
	Directory *Directory
	Mailer    Mailer

	tmpl *template.Template
}

func (u *ExceptionResponder) Name() string { return ResponderName }

func (u *ExceptionResponder) Init() error {
	var errs []error
	if u.From == "" {
		errs = append(errs, ErrMissingSender)
	}
	if u.Directory == nil {
		errs = append(errs, ErrMissingDirectory)
	}
	if u.Mailer == nil {
		errs = append(errs, ErrMissingMailer)
	}
	tmpl, err := template.New("exception").Parse(exceptionEmail)
	if err != nil {
		errs = append(errs, fmt.Errorf("parsing email template: %w", err))
	}
	u.tmpl = tmpl
	return errors.Join(errs...)
}

func (u *ExceptionResponder) Execute(ctx context.Context, env orchestrator.Env) orchestrator.Outcome {
	notices := []ExceptionNotice{}
	var outputs []string

	err := activity.CaptureError(env.Status, func() error {
		results, err := orchestrator.Lookup[ValidationResults](env.Store, KeyValidationResults)
		if err != nil {
			return err
		}

		total := len(results.Exceptions)
		for i, exc := range results.Exceptions {
			notice, path, err := u.respond(ctx, exc)
			if err != nil {
				return fmt.Errorf("order %s: %w", exc.Order.ID, err)
			}
			notices = append(notices, notice)
			outputs = append(outputs, path)
			env.Logger.Info("exception email generated", "order_id", exc.Order.ID, "to", notice.To, "status", notice.Status)
			env.Status.Progress(float64(i+1)*100/float64(total), fmt.Sprintf("emailed %d/%d customers", i+1, total))
		}

		path, err := writeJSON(u.OutputDir, emailLogFile, notices)
		if err != nil {
			return err
		}
		outputs = append(outputs, path)
		return nil
	})
	if err != nil {
		return orchestrator.Failure(err)
	}

	sent := 0
	for _, n := range notices {
		if n.Status == DeliverySent {
			sent++
		}
	}
	return orchestrator.Success(
		map[string]any{"emails": len(notices), "sent": sent, "failed": len(notices) - sent},
		map[string]any{KeyExceptionNotices: notices},
		outputs...,
	)
}

// respond renders, writes and sends the email for one exception.
func (u *ExceptionResponder) respond(ctx context.Context, exc OrderException) (ExceptionNotice, string, error) {
	cust, _ := u.Directory.Lookup(exc.Order.CustomerID)
	data := emailData{
		From:         u.From,
		To:           cust.Email,
		Subject:      fmt.Sprintf("Purchase order %s requires attention", exc.Order.ID),
		CustomerName: cust.Name,
		Order:        exc.Order,
		Issues:       exc.Issues,
	}

	if err := ValidateOrderID(exc.Order.ID); err != nil {
		return ExceptionNotice{}, "", err
	}

	var body bytes.Buffer
	if err := u.tmpl.Execute(&body, data); err != nil {
		return ExceptionNotice{}, "", fmt.Errorf("rendering email: %w", err)
	}
	path, err := writeFile(u.OutputDir, filepath.Join(emailDir, exc.Order.ID+".txt"), body.Bytes())
	if err != nil {
		return ExceptionNotice{}, "", err
	}

	status, err := u.Mailer.Send(ctx, Email{From: data.From, To: data.To, Subject: data.Subject, Body: body.String()})
	if err != nil {
		return ExceptionNotice{}, "", fmt.Errorf("sending email: %w", err)
	}

	return ExceptionNotice{
		OrderID:    exc.Order.ID,
		CustomerID: exc.Order.CustomerID,
		To:         data.To,
		Subject:    data.Subject,
		File:       path,
		Issues:     len(exc.Issues),
		Status:     status,
	}, path, nil
}

var _ orchestrator.Unit = (*ExceptionResponder)(nil)
