package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notevault/notevault-api/internal/models"
	"github.com/notevault/notevault-api/pkg/jobs"
)

type capturingSender struct {
	to       []string
	subjects []string
	bodies   []string
}

func (c *capturingSender) Send(to, subject, htmlBody string) error {
	c.to = append(c.to, to)
	c.subjects = append(c.subjects, subject)
	c.bodies = append(c.bodies, htmlBody)
	return nil
}

func newTestNotifier() (*MailNotifier, *capturingSender) {
	sender := &capturingSender{}
	return NewMailNotifier(sender, zap.NewNop(), jobs.QueueConfig{Workers: 1}), sender
}

func TestSendOTPAddressesRecipient(t *testing.T) {
	notifier, sender := newTestNotifier()

	require.NoError(t, notifier.SendOTP(context.Background(), "ada@example.com", "Ada", "123456"))
	require.Len(t, sender.bodies, 1)
	assert.Equal(t, "ada@example.com", sender.to[0])
	assert.Contains(t, sender.bodies[0], "123456")
	assert.Contains(t, sender.bodies[0], "Ada")
}

func TestSendAdminOTPNamesRole(t *testing.T) {
	notifier, sender := newTestNotifier()

	require.NoError(t, notifier.SendAdminOTP(context.Background(), "grace@example.com", "Grace", "654321", models.RoleHR))
	require.Len(t, sender.bodies, 1)
	assert.Contains(t, sender.subjects[0], "admin")
	assert.Contains(t, sender.bodies[0], "654321")
	assert.Contains(t, sender.bodies[0], string(models.RoleHR))
}

func TestAdminWelcomeMailCarriesRoleAndDepartment(t *testing.T) {
	notifier, sender := newTestNotifier()

	department := "Physics"
	err := notifier.handleJob(context.Background(), jobs.Job{
		Type: "admin_welcome",
		Payload: adminWelcomePayload{
			Email:      "grace@example.com",
			FirstName:  "Grace",
			Role:       models.RoleFaculty,
			Department: &department,
		},
	})
	require.NoError(t, err)
	require.Len(t, sender.bodies, 1)
	assert.Contains(t, sender.bodies[0], string(models.RoleFaculty))
	assert.Contains(t, sender.bodies[0], "Physics")
}

func TestWelcomeMailOmitsAdminWording(t *testing.T) {
	notifier, sender := newTestNotifier()

	err := notifier.handleJob(context.Background(), jobs.Job{
		Type:    "welcome",
		Payload: welcomePayload{Email: "ada@example.com", FirstName: "Ada"},
	})
	require.NoError(t, err)
	require.Len(t, sender.subjects, 1)
	assert.NotContains(t, sender.subjects[0], "admin")
}
