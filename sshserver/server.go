// Package sshserver bridges the device console to SSH clients: session
// output and window titles are mirrored to every connected client, and
// client keystrokes are forwarded to the device.
package sshserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"

	gliderssh "github.com/gliderlabs/ssh"
	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
	"pkt.systems/replink/internal/eventbus"
	"pkt.systems/replink/internal/logx"
	"pkt.systems/replink/schema"
)

// detachByte ends a bridge session (Ctrl-]).
const detachByte = 0x1d

// ConsoleInput forwards client keystrokes to the device console.
type ConsoleInput interface {
	SendInput(data []byte) error
}

// Server exposes the device console over SSH.
type Server struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	Listener           net.Listener
	Console            ConsoleInput
	EventBus           *eventbus.Bus
	logger             pslog.Logger

	authorizedKeys []ssh.PublicKey
}

// ListenAndServe starts the SSH bridge and shuts down on context cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.logger == nil {
		s.logger = pslog.Ctx(ctx)
	}
	if s.Console == nil {
		return errors.New("console input is required for SSH")
	}
	if s.EventBus == nil {
		return errors.New("event bus is required for SSH")
	}

	signer, err := EnsureHostKey(s.HostKeyPath)
	if err != nil {
		return err
	}

	keys, err := LoadAuthorizedKeys(s.AuthorizedKeysPath)
	if err != nil {
		return err
	}
	s.authorizedKeys = keys
	if len(keys) == 0 {
		s.logger.Warn("ssh bridge accepts any key", "reason", "no authorized_keys", "path", s.AuthorizedKeysPath)
	}

	server := &gliderssh.Server{
		Addr:             s.Addr,
		Handler:          s.handleSession,
		PublicKeyHandler: s.handlePublicKey,
	}
	server.AddHostKey(signer)

	errCh := make(chan error, 1)
	go func() {
		if s.Listener != nil {
			errCh <- server.Serve(s.Listener)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = server.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handlePublicKey(ctx gliderssh.Context, key gliderssh.PublicKey) bool {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(ctx)
	}
	fingerprint := ssh.FingerprintSHA256(key)
	remote := remoteAddr(ctx)
	if len(s.authorizedKeys) == 0 {
		log.Info("ssh pubkey accepted", "remote", remote, "fingerprint", fingerprint, "open_access", true)
		return true
	}
	if keyAuthorized(s.authorizedKeys, key) {
		log.Info("ssh pubkey accepted", "remote", remote, "fingerprint", fingerprint)
		return true
	}
	log.Warn("ssh pubkey rejected", "reason", "no matching key", "remote", remote, "fingerprint", fingerprint)
	return false
}

func remoteAddr(ctx gliderssh.Context) string {
	if ctx == nil || ctx.RemoteAddr() == nil {
		return ""
	}
	return ctx.RemoteAddr().String()
}

func (s *Server) handleSession(sess gliderssh.Session) {
	log := s.logger
	if log == nil {
		log = pslog.Ctx(sess.Context())
	}
	remote := sess.RemoteAddr().String()
	log = log.With("remote", remote)
	if sshSession := sess.Context().SessionID(); sshSession != "" {
		log = log.With("ssh_session", sshSession)
	}
	ctx := pslog.ContextWithLogger(sess.Context(), log)

	pty, _, ok := sess.Pty()
	if !ok {
		log.Info("ssh session rejected", "reason", "pty required")
		_, _ = io.WriteString(sess, "pty required\r\n")
		return
	}
	log.Info("ssh session opened", "term", pty.Term)

	events, unsubscribe := s.EventBus.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go s.mirrorEvents(ctx, sess, events, done)

	s.forwardInput(logx.Ctx(ctx), sess)
	close(done)
	log.Info("ssh session closed")
}

// mirrorEvents writes console events to the client until the session or the
// subscription ends.
func (s *Server) mirrorEvents(ctx context.Context, sess gliderssh.Session, events <-chan schema.ConsoleEvent, done <-chan struct{}) {
	title := ""
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			switch event.Type {
			case schema.ConsoleOutput:
				if _, err := sess.Write(event.Data); err != nil {
					return
				}
			case schema.ConsoleTitle:
				if event.Append {
					title += event.Title
				} else {
					title = event.Title
				}
				if _, err := io.WriteString(sess, "\x1b]0;"+title+"\x07"); err != nil {
					return
				}
			}
		}
	}
}

// forwardInput relays client keystrokes to the console until detach or EOF.
func (s *Server) forwardInput(log pslog.Logger, sess gliderssh.Session) {
	buf := make([]byte, 256)
	for {
		n, err := sess.Read(buf)
		if n > 0 {
			data := buf[:n]
			if idx := bytes.IndexByte(data, detachByte); idx >= 0 {
				if idx > 0 {
					s.sendInput(log, sess, data[:idx])
				}
				_, _ = io.WriteString(sess, "\r\ndetached\r\n")
				return
			}
			s.sendInput(log, sess, data)
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) sendInput(log pslog.Logger, sess gliderssh.Session, data []byte) {
	err := s.Console.SendInput(append([]byte(nil), data...))
	if err == nil {
		return
	}
	if errors.Is(err, schema.ErrBusy) {
		_, _ = io.WriteString(sess, "\r\n[console busy: a submission is in flight]\r\n")
		return
	}
	log.Warn("ssh input forward failed", "err", err)
}
