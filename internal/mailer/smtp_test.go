package mailer

import (
	"context"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type smtpTranscript struct {
	from string
	rcpt []string
	data string
}

// serveSMTP accepts a single session on ln speaking just enough SMTP for
// net/smtp: no extensions, no auth.
func serveSMTP(t *testing.T, ln net.Listener) <-chan smtpTranscript {
	t.Helper()

	done := make(chan smtpTranscript, 1)
	go func() {
		defer close(done)

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetDeadline(time.Now().Add(5 * time.Second))

		tp := textproto.NewConn(conn)
		var got smtpTranscript
		tp.PrintfLine("220 localhost ESMTP test")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			cmd := strings.ToUpper(line)
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				tp.PrintfLine("250 localhost")
			case strings.HasPrefix(cmd, "MAIL FROM:"):
				got.from = strings.Trim(line[len("MAIL FROM:"):], "<> ")
				tp.PrintfLine("250 OK")
			case strings.HasPrefix(cmd, "RCPT TO:"):
				got.rcpt = append(got.rcpt, strings.Trim(line[len("RCPT TO:"):], "<> "))
				tp.PrintfLine("250 OK")
			case cmd == "DATA":
				tp.PrintfLine("354 go ahead")
				body, err := tp.ReadDotBytes()
				if err != nil {
					return
				}
				got.data = string(body)
				tp.PrintfLine("250 queued")
			case cmd == "QUIT":
				tp.PrintfLine("221 bye")
				done <- got
				return
			default:
				tp.PrintfLine("502 not implemented")
			}
		}
	}()
	return done
}

func TestSMTPSender_Send(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	transcript := serveSMTP(t, ln)

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sender := NewSMTPSender(host, port, "", "")
	msg := "Subject: hello\r\n\r\nbody line\r\n"
	require.NoError(t, sender.Send(ctx, "no-reply@kostan.test", []string{"budi@example.com"}, []byte(msg)))

	got := <-transcript
	assert.Equal(t, "no-reply@kostan.test", got.from)
	assert.Equal(t, []string{"budi@example.com"}, got.rcpt)
	assert.Contains(t, got.data, "body line")
}

func TestSMTPSender_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	sender := NewSMTPSender("127.0.0.1", addr.Port, "", "")
	err = sender.Send(context.Background(), "a@example.com", []string{"b@example.com"}, []byte("x"))
	assert.ErrorContains(t, err, "failed to dial smtp server")
}
