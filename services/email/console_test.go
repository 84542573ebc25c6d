package emailsvc

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umirovdev/maktab/core"
)

func clearSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}

func Test_consoleServiceMock_SendMessages(t *testing.T) {
	conf := &core.Config{AppName: "Maktab", DefaultFromName: "Maktab", DefaultFromAddr: "noreply@maktab.local"}
	svc := NewConsoleServiceMock(conf)

	t.Run("plain body is recorded", func(t *testing.T) {
		clearSentMessages()

		msg := &core.EmailMessage{
			To:      []mail.Address{{Name: "Laylo Karimova", Address: "laylo@maktab.local"}},
			Subject: "Welcome",
			BodyStr: "Your account is ready.",
		}
		svc.SendMessages(msg)

		assert.Len(t, SentMessages, 1)
		assert.Equal(t, "Welcome", SentMessages[0].Subject)
		assert.Equal(t, "Your account is ready.", SentMessages[0].TextContent)
	})

	t.Run("no recipients is skipped", func(t *testing.T) {
		clearSentMessages()

		svc.SendMessages(&core.EmailMessage{Subject: "Orphan", BodyStr: "nobody home"})
		assert.Empty(t, SentMessages)
	})

	t.Run("attachment survives the send", func(t *testing.T) {
		clearSentMessages()

		msg := &core.EmailMessage{
			To:      []mail.Address{{Address: "aziz@maktab.local"}},
			Subject: "Report",
			BodyStr: "See attached.",
		}
		err := msg.Attach(strings.NewReader("id,score\n1,95\n"), "grades.csv")
		assert.NoError(t, err)

		svc.SendMessages(msg)

		assert.Len(t, SentMessages, 1)
		assert.Len(t, SentMessages[0].Attachments, 1)
		at := SentMessages[0].Attachments[0]
		assert.Equal(t, "grades.csv", at.Filename)
		assert.Equal(t, "text/plain; charset=utf-8", at.ContentType)

		decoded, err := base64.StdEncoding.DecodeString(at.Content.String())
		assert.NoError(t, err)
		assert.Equal(t, "id,score\n1,95\n", string(decoded))
	})
}
