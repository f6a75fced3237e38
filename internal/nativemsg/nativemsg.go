// Package nativemsg speaks the browser native-messaging framing over a pair
// of streams: every message is a 32-bit little-endian length followed by
// that many bytes of UTF-8 JSON.
package nativemsg

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/FrankUSC/WebBriefer/internal/message"
)

const (
	// MaxIncoming bounds a message from the browser.
	MaxIncoming = 64 << 20
	// MaxOutgoing is the browser's limit for a message from the host.
	MaxOutgoing = 1 << 20
)

var (
	ErrTooLarge = errors.New("native message too large")
	ErrEmpty    = errors.New("empty native message")
)

// ReadFrame reads one framed message. It returns io.EOF only when the
// stream ends cleanly between frames.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read length: %w", err)
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n == 0 {
		return nil, ErrEmpty
	}
	if n > MaxIncoming {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return buf, nil
}

// WriteFrame frames and writes payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxOutgoing {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// Write encodes v as JSON and writes it as one frame.
func Write(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return WriteFrame(w, b)
}

// Handler answers one request.
type Handler interface {
	Handle(ctx context.Context, req message.Request) message.Response
}

// Server reads requests from In and writes responses and notifications to
// Out. Requests are handled one at a time in arrival order.
type Server struct {
	Handler Handler
	In      io.Reader
	Out     io.Writer

	mu sync.Mutex
}

// Serve runs until In is exhausted, ctx is done or a transport error occurs.
// A request that is not valid JSON gets an error response and the loop
// continues.
func (s *Server) Serve(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := ReadFrame(s.In)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		var req message.Request
		if err := json.Unmarshal(frame, &req); err != nil {
			log.Warn().Err(err).Int("bytes", len(frame)).Msg("discarding malformed request")
			if err := s.send(message.Response{Success: false, Error: "Malformed request: " + err.Error()}); err != nil {
				return err
			}
			continue
		}

		resp := s.Handler.Handle(ctx, req)
		resp.ID = req.ID
		if err := s.send(resp); err != nil {
			return err
		}
	}
}

// Notify pushes an unsolicited message. Failures are logged.
func (s *Server) Notify(n message.Notification) {
	if err := s.send(n); err != nil {
		log.Warn().Err(err).Str("type", n.Type).Msg("notification dropped")
	}
}

func (s *Server) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Write(s.Out, v)
}
