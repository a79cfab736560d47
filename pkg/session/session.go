package session

import (
	"crypto/cipher"
	"encoding/binary"
	"io"
	"sync"

	"github.com/backkem/hap/pkg/crypto"
)

// Framing constants.
const (
	// MaxFrameLength is the maximum plaintext carried by one frame.
	MaxFrameLength = 0x400

	// LengthSize is the size of the little-endian length prefix.
	LengthSize = 2

	// TagSize is the Poly1305 tag appended to each frame.
	TagSize = crypto.TagSize

	// FrameOverhead is the wire overhead of a frame.
	FrameOverhead = LengthSize + TagSize
)

// Key derivation strings.
const (
	controlSalt     = "Control-Salt"
	controlWriteKey = "Control-Write-Encryption-Key"
	controlReadKey  = "Control-Read-Encryption-Key"
)

// Session holds the traffic keys and frame counters of one connection.
// Seal and Open may run concurrently with each other; each direction is
// serialized internally.
type Session struct {
	role Role

	sendMu    sync.Mutex
	sendKey   [crypto.KeySize]byte
	sendAEAD  cipher.AEAD
	sendCount counter

	recvMu    sync.Mutex
	recvKey   [crypto.KeySize]byte
	recvAEAD  cipher.AEAD
	recvCount counter
	recvErr   error
}

// NewSession derives the traffic keys from the Pair Verify shared secret.
func NewSession(sharedSecret []byte, role Role) (*Session, error) {
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}
	writeKey, err := crypto.DeriveKey(sharedSecret, controlSalt, controlWriteKey)
	if err != nil {
		return nil, err
	}
	readKey, err := crypto.DeriveKey(sharedSecret, controlSalt, controlReadKey)
	if err != nil {
		return nil, err
	}

	s := &Session{role: role}
	if role == RoleAccessory {
		s.sendKey, s.recvKey = readKey, writeKey
	} else {
		s.sendKey, s.recvKey = writeKey, readKey
	}
	crypto.Zeroize(writeKey[:])
	crypto.Zeroize(readKey[:])

	if s.sendAEAD, err = crypto.NewAEAD(s.sendKey); err != nil {
		return nil, err
	}
	if s.recvAEAD, err = crypto.NewAEAD(s.recvKey); err != nil {
		return nil, err
	}
	return s, nil
}

// Role returns the local role.
func (s *Session) Role() Role {
	return s.role
}

// Seal encrypts plaintext into one or more frames of at most MaxFrameLength
// plaintext bytes each. An empty plaintext yields a single empty frame.
// If the counter runs out part way, no frames are returned.
func (s *Session) Seal(plaintext []byte) ([]byte, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.sendAEAD == nil {
		return nil, ErrClosed
	}

	frames := (len(plaintext) + MaxFrameLength - 1) / MaxFrameLength
	if frames == 0 {
		frames = 1
	}
	// Check the whole message fits in the remaining counter space.
	start, err := s.sendCount.peek()
	if err != nil {
		return nil, err
	}
	if ^uint64(0)-start < uint64(frames) {
		return nil, ErrNonceExhausted
	}

	out := make([]byte, 0, len(plaintext)+frames*FrameOverhead)
	for {
		n := len(plaintext)
		if n > MaxFrameLength {
			n = MaxFrameLength
		}
		seq, err := s.sendCount.next()
		if err != nil {
			return nil, err
		}
		out = s.sealFrame(out, plaintext[:n], seq)
		plaintext = plaintext[n:]
		if len(plaintext) == 0 {
			break
		}
	}
	return out, nil
}

func (s *Session) sealFrame(dst, chunk []byte, seq uint64) []byte {
	var aad [LengthSize]byte
	binary.LittleEndian.PutUint16(aad[:], uint16(len(chunk)))
	nonce := crypto.CounterNonce(seq)

	dst = append(dst, aad[:]...)
	return s.sendAEAD.Seal(dst, nonce[:], chunk, aad[:])
}

// Open authenticates and decrypts one complete frame. A failure is sticky:
// every later Open returns the same error.
func (s *Session) Open(frame []byte) ([]byte, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if s.recvErr != nil {
		return nil, s.recvErr
	}
	if len(frame) < FrameOverhead {
		return nil, s.failRecv(ErrMalformedFrame)
	}
	n := int(binary.LittleEndian.Uint16(frame[:LengthSize]))
	if n > MaxFrameLength {
		return nil, s.failRecv(ErrFrameTooLarge)
	}
	if len(frame) != FrameOverhead+n {
		return nil, s.failRecv(ErrMalformedFrame)
	}
	return s.openFrame(frame[:LengthSize], frame[LengthSize:])
}

// ReadFrame reads exactly one frame from r and decrypts it.
func (s *Session) ReadFrame(r io.Reader) ([]byte, error) {
	var header [LengthSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(header[:]))

	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	if s.recvErr != nil {
		return nil, s.recvErr
	}
	if n > MaxFrameLength {
		return nil, s.failRecv(ErrFrameTooLarge)
	}
	body := make([]byte, n+TagSize)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return s.openFrame(header[:], body)
}

// openFrame caller must hold s.recvMu.
func (s *Session) openFrame(aad, sealed []byte) ([]byte, error) {
	if s.recvAEAD == nil {
		return nil, ErrClosed
	}
	seq, err := s.recvCount.peek()
	if err != nil {
		return nil, s.failRecv(err)
	}
	nonce := crypto.CounterNonce(seq)
	plaintext, err := s.recvAEAD.Open(nil, nonce[:], sealed, aad)
	if err != nil {
		return nil, s.failRecv(ErrTagMismatch)
	}
	s.recvCount.next()
	return plaintext, nil
}

// failRecv caller must hold s.recvMu.
func (s *Session) failRecv(err error) error {
	s.recvErr = err
	return err
}

// Counters returns the next send and receive frame numbers.
func (s *Session) Counters() (send, recv uint64) {
	s.sendMu.Lock()
	send = s.sendCount.value
	s.sendMu.Unlock()
	s.recvMu.Lock()
	recv = s.recvCount.value
	s.recvMu.Unlock()
	return send, recv
}

// Zeroize destroys both traffic keys. Later Seal and Open calls fail with
// ErrClosed.
func (s *Session) Zeroize() {
	s.sendMu.Lock()
	crypto.Zeroize(s.sendKey[:])
	s.sendAEAD = nil
	s.sendMu.Unlock()

	s.recvMu.Lock()
	crypto.Zeroize(s.recvKey[:])
	s.recvAEAD = nil
	if s.recvErr == nil {
		s.recvErr = ErrClosed
	}
	s.recvMu.Unlock()
}
