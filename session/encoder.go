package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

var (
	ErrInvalidVersion = errors.New("invalid session version")
	ErrTrailingData   = errors.New("trailing session data")
	ErrFieldTooLong   = errors.New("session field too long")
)

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(sessionFormatVersionCurrent)

	for _, field := range []string{s.UserID, s.Email, s.AccessToken, s.RefreshToken} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.BigEndian, s.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, ErrInvalidVersion
	}

	s := &Session{}
	for _, field := range []*string{&s.UserID, &s.Email, &s.AccessToken, &s.RefreshToken} {
		if *field, err = readString(reader); err != nil {
			return nil, err
		}
	}
	if err := binary.Read(reader, binary.BigEndian, &s.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, ErrTrailingData
	}

	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > 65535 {
		return ErrFieldTooLong
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
