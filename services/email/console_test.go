package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	appfs "github.com/trezcool/darasa/fs"
	logsvc "github.com/trezcool/darasa/services/logger"
)

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewTestConfig()
	var logs bytes.Buffer
	logger := logsvc.NewRollbarLogger(&logs, "TEST", conf)
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	svc := NewConsoleServiceMock(conf, logger)
	ada := mail.Address{Name: "Ada", Address: "ada@test.cd"}

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{ada}, Subject: "no content"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "hello"},
		&core.EmailMessage{
			To:           []mail.Address{ada},
			Subject:      "Your class for this year",
			TemplateName: "class_assigned",
			TemplateData: map[string]interface{}{"FirstName": "Ada", "ClassName": "10A3", "Grade": 10},
		},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1, "messages without recipient or content are dropped")
	assert.Contains(t, sent[0].TextContent, "Hello Ada")
	assert.Contains(t, sent[0].TextContent, "class 10A3 (grade 10)")
	assert.Contains(t, sent[0].HTMLContent, "10A3")
	assert.Empty(t, logs.String(), "the mock does not print")

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func Test_consoleService_send(t *testing.T) {
	conf := core.NewTestConfig()
	var logs bytes.Buffer
	svc := consoleService{
		defaultFromEmail: conf.DefaultFromEmail(),
		subjPrefix:       "[" + conf.AppName + "] ",
		logger:           logsvc.NewRollbarLogger(&logs, "TEST", conf),
	}

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "Ada", Address: "ada@test.cd"}},
		Subject:     "Report",
		TextContent: "see attached",
	}
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n1,2\n"), "report.csv", "text/csv"))
	require.NoError(t, svc.send(msg))

	out := logs.String()
	assert.Contains(t, out, "Subject: [Darasa] Report")
	assert.Contains(t, out, "multipart/mixed")
	assert.Contains(t, out, "filename=report.csv")
}
