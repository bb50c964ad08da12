package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notevault/notevault-api/internal/models"
	"github.com/notevault/notevault-api/pkg/jobs"
	"github.com/notevault/notevault-api/pkg/mailer"
)

// Notifier delivers account emails. OTP delivery is synchronous because the
// registration response depends on it; welcome mail is best-effort and runs
// on the background queue. Admin mail carries the assigned role so staff can
// tell which account the message belongs to.
type Notifier interface {
	SendOTP(ctx context.Context, email, firstName, otp string) error
	SendAdminOTP(ctx context.Context, email, firstName, otp string, role models.AdminRole) error
	QueueWelcome(email, firstName string) error
	QueueAdminWelcome(email, firstName string, role models.AdminRole, department *string) error
}

type welcomePayload struct {
	Email     string
	FirstName string
}

type adminWelcomePayload struct {
	Email      string
	FirstName  string
	Role       models.AdminRole
	Department *string
}

// MailNotifier sends account emails over SMTP.
type MailNotifier struct {
	sender mailer.Sender
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewMailNotifier constructs a notifier. Call Start before enqueueing
// welcome mail and Stop on shutdown.
func NewMailNotifier(sender mailer.Sender, logger *zap.Logger, queueCfg jobs.QueueConfig) *MailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &MailNotifier{sender: sender, logger: logger}
	queueCfg.Logger = logger
	n.queue = jobs.NewQueue("mail", n.handleJob, queueCfg)
	return n
}

// Start launches the background mail workers.
func (n *MailNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the background mail workers.
func (n *MailNotifier) Stop() {
	n.queue.Stop()
}

// SendOTP delivers the verification code. Failures surface to the caller so
// registration can report that no code went out.
func (n *MailNotifier) SendOTP(ctx context.Context, email, firstName, otp string) error {
	subject := "Your NoteVault verification code"
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your verification code is <strong>%s</strong>. It expires in 10 minutes.</p><p>If you did not request this, you can ignore this email.</p>`,
		firstName, otp,
	)
	return n.deliver(email, subject, body)
}

// SendAdminOTP delivers the verification code for a staff account, naming
// the role the registration was made under.
func (n *MailNotifier) SendAdminOTP(ctx context.Context, email, firstName, otp string, role models.AdminRole) error {
	subject := "Your NoteVault admin verification code"
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>An admin account with the <strong>%s</strong> role was registered for this address.</p><p>Your verification code is <strong>%s</strong>. It expires in 10 minutes.</p><p>If you did not request this, you can ignore this email.</p>`,
		firstName, role, otp,
	)
	return n.deliver(email, subject, body)
}

// QueueWelcome schedules the post-verification welcome mail.
func (n *MailNotifier) QueueWelcome(email, firstName string) error {
	return n.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "welcome",
		Payload: welcomePayload{Email: email, FirstName: firstName},
	})
}

// QueueAdminWelcome schedules the staff welcome mail carrying the role and,
// for faculty, the department.
func (n *MailNotifier) QueueAdminWelcome(email, firstName string, role models.AdminRole, department *string) error {
	return n.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "admin_welcome",
		Payload: adminWelcomePayload{Email: email, FirstName: firstName, Role: role, Department: department},
	})
}

func (n *MailNotifier) deliver(email, subject, body string) error {
	if err := n.sender.Send(email, subject, body); err != nil {
		n.logger.Error("otp mail delivery failed", zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}

func (n *MailNotifier) handleJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case "welcome":
		payload, ok := job.Payload.(welcomePayload)
		if !ok {
			n.logger.Error("unexpected welcome payload", zap.String("job_id", job.ID))
			return nil
		}
		subject := "Welcome to NoteVault"
		body := fmt.Sprintf(
			`<p>Hi %s,</p><p>Your email is verified and your account is ready. Start browsing and sharing notes right away.</p>`,
			payload.FirstName,
		)
		return n.sender.Send(payload.Email, subject, body)
	case "admin_welcome":
		payload, ok := job.Payload.(adminWelcomePayload)
		if !ok {
			n.logger.Error("unexpected admin welcome payload", zap.String("job_id", job.ID))
			return nil
		}
		subject := "Your NoteVault admin account is ready"
		detail := fmt.Sprintf("the <strong>%s</strong> role", payload.Role)
		if payload.Department != nil {
			detail = fmt.Sprintf("the <strong>%s</strong> role in the %s department", payload.Role, *payload.Department)
		}
		body := fmt.Sprintf(
			`<p>Hi %s,</p><p>Your email is verified and your admin account with %s is active. You can sign in to the admin panel now.</p>`,
			payload.FirstName, detail,
		)
		return n.sender.Send(payload.Email, subject, body)
	default:
		n.logger.Warn("unknown mail job type", zap.String("type", job.Type))
		return nil
	}
}
