package stores

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const resetFlowRecordVersion1 = 1

// ResetFlow is the persisted password-reset marker.
type ResetFlow struct {
	Active bool
	Email  string
}

func EncodeResetFlow(record ResetFlow) ([]byte, error) {
	if len(record.Email) > 65535 {
		return nil, errors.New("reset flow email length exceeded")
	}

	var buf bytes.Buffer
	buf.WriteByte(resetFlowRecordVersion1)
	if record.Active {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)

	return buf.Bytes(), nil
}

// DecodeResetFlow returns ok=false for any payload it cannot fully trust.
func DecodeResetFlow(data []byte) (ResetFlow, bool) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != resetFlowRecordVersion1 {
		return ResetFlow{}, false
	}

	flag, err := reader.ReadByte()
	if err != nil || flag > 1 {
		return ResetFlow{}, false
	}

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return ResetFlow{}, false
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return ResetFlow{}, false
	}
	if reader.Len() != 0 {
		return ResetFlow{}, false
	}

	return ResetFlow{Active: flag == 1, Email: string(email)}, true
}
