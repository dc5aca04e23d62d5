package protocol

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tomasstrnad1997/minesweep/mines"
)

type MessageType byte

const (
	MoveCommand   MessageType = 0x01
	TextMessage   MessageType = 0x02
	StartRound    MessageType = 0x04
	CellUpdate    MessageType = 0x05
	RequestReload MessageType = 0x06
	GameEnd       MessageType = 0x07
	RoundState    MessageType = 0x08
	ErrorMessage  MessageType = 0x09
)

type GameEndType byte

const (
	Win     GameEndType = 0x01
	Loss    GameEndType = 0x02
	Aborted GameEndType = 0x03
)

type ErrorCode byte

const (
	ErrCodeConfiguration     ErrorCode = 0x01
	ErrCodeInvalidCoordinate ErrorCode = 0x02
	ErrCodeNoRound           ErrorCode = 0x03
	ErrCodeMalformed         ErrorCode = 0x04
	ErrCodeInternal          ErrorCode = 0x05
)

// Cell values on the wire. Counts are sent as themselves.
const (
	ShowMine      byte = 0x10
	ShowDetonated byte = 0x11
	ShowHidden    byte = 0xFF
)

const (
	HeaderLength         = 6
	UpdateCellByteLength = 9
	MaxPayloadLength     = 1 << 22
)

var (
	ErrInvalidPayloadSize = errors.New("invalid payload size")
	ErrPayloadTooLarge    = errors.New("payload too large")
	ErrMalformed          = errors.New("malformed message")
)

type RemoteError struct {
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

func checkAndDecodeLength(data []byte, message MessageType) (int, error) {
	if len(data) < HeaderLength {
		return 0, fmt.Errorf("%w: data too short to decode", ErrMalformed)
	}
	if MessageType(data[0]) != message {
		return 0, fmt.Errorf("%w: invalid message type for command E:%d R:%d", ErrMalformed, message, data[0])
	}
	payloadLength := int(binary.BigEndian.Uint32(data[2:6]))
	if payloadLength != len(data)-HeaderLength {
		return payloadLength, ErrInvalidPayloadSize
	}
	return payloadLength, nil
}

// ReadMessage reads one framed message, header included.
func ReadMessage(reader *bufio.Reader) ([]byte, error) {
	header := make([]byte, HeaderLength)
	if _, err := io.ReadFull(reader, header); err != nil {
		return nil, err
	}
	messageLength := int(binary.BigEndian.Uint32(header[2:HeaderLength]))
	if messageLength > MaxPayloadLength {
		return nil, ErrPayloadTooLarge
	}
	message := make([]byte, messageLength+HeaderLength)
	copy(message[0:HeaderLength], header)
	if _, err := io.ReadFull(reader, message[HeaderLength:]); err != nil {
		return nil, err
	}
	return message, nil
}

func intToBytes(i int) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(int32(i)))
	return buf
}

func bytesToInt(bytes []byte) int {
	return int(int32(binary.BigEndian.Uint32(bytes)))
}

func writePayloadLength(buf *bytes.Buffer, length int) error {
	err := binary.Write(buf, binary.BigEndian, uint32(length))
	if err != nil {
		return fmt.Errorf("Failed to write length (%d)", length)
	}
	return nil
}

func encodeMessage(tp MessageType, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(tp))
	// Reserved byte for future use
	buf.WriteByte(byte(0x00))
	if err := writePayloadLength(&buf, len(payload)); err != nil {
		return nil, err
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

func EncodeTextMessage(message string) ([]byte, error) {
	return encodeMessage(TextMessage, []byte(message))
}

func DecodeTextMessage(data []byte) (string, error) {
	_, err := checkAndDecodeLength(data, TextMessage)
	if err != nil {
		return "", err
	}
	return string(data[HeaderLength:]), nil
}

func EncodeMove(c mines.Coord) ([]byte, error) {
	payload := make([]byte, 8)
	copy(payload[0:4], intToBytes(c.X))
	copy(payload[4:8], intToBytes(c.Y))
	return encodeMessage(MoveCommand, payload)
}

func DecodeMove(data []byte) (*mines.Coord, error) {
	length, err := checkAndDecodeLength(data, MoveCommand)
	if err != nil {
		return nil, err
	}
	if length != 8 {
		return nil, fmt.Errorf("%w: move payload length %d", ErrInvalidPayloadSize, length)
	}
	payload := data[HeaderLength:]
	return &mines.Coord{X: bytesToInt(payload[0:4]), Y: bytesToInt(payload[4:8])}, nil
}

func EncodeStartRound(params mines.Params) ([]byte, error) {
	payload := make([]byte, 8)
	copy(payload[0:4], intToBytes(params.Size))
	copy(payload[4:8], intToBytes(params.Mines))
	return encodeMessage(StartRound, payload)
}

func DecodeStartRound(data []byte) (*mines.Params, error) {
	length, err := checkAndDecodeLength(data, StartRound)
	if err != nil {
		return nil, err
	}
	if length != 8 {
		return nil, fmt.Errorf("%w: start round payload length %d", ErrInvalidPayloadSize, length)
	}
	payload := data[HeaderLength:]
	return &mines.Params{Size: bytesToInt(payload[0:4]), Mines: bytesToInt(payload[4:8])}, nil
}

func EncodeRequestReload() ([]byte, error) {
	return encodeMessage(RequestReload, nil)
}

func DecodeRequestReload(data []byte) error {
	length, err := checkAndDecodeLength(data, RequestReload)
	if err != nil {
		return err
	}
	if length != 0 {
		return ErrInvalidPayloadSize
	}
	return nil
}

func EncodeGameEnd(endType GameEndType) ([]byte, error) {
	return encodeMessage(GameEnd, []byte{byte(endType)})
}

func DecodeGameEnd(data []byte) (GameEndType, error) {
	length, err := checkAndDecodeLength(data, GameEnd)
	if err != nil {
		return 0, err
	}
	if length != 1 {
		return 0, ErrInvalidPayloadSize
	}
	return GameEndType(data[HeaderLength]), nil
}

func EncodeRoundState(state mines.State) ([]byte, error) {
	return encodeMessage(RoundState, []byte{byte(state)})
}

func DecodeRoundState(data []byte) (mines.State, error) {
	length, err := checkAndDecodeLength(data, RoundState)
	if err != nil {
		return 0, err
	}
	if length != 1 {
		return 0, ErrInvalidPayloadSize
	}
	state := mines.State(data[HeaderLength])
	if state > mines.Lost {
		return 0, fmt.Errorf("%w: unknown round state %d", ErrMalformed, state)
	}
	return state, nil
}

func EncodeError(code ErrorCode, message string) ([]byte, error) {
	payload := make([]byte, 1+len(message))
	payload[0] = byte(code)
	copy(payload[1:], message)
	return encodeMessage(ErrorMessage, payload)
}

func DecodeError(data []byte) (*RemoteError, error) {
	length, err := checkAndDecodeLength(data, ErrorMessage)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, ErrInvalidPayloadSize
	}
	payload := data[HeaderLength:]
	return &RemoteError{Code: ErrorCode(payload[0]), Message: string(payload[1:])}, nil
}

// ErrorCodeFor classifies an engine error for the wire.
func ErrorCodeFor(err error) ErrorCode {
	switch {
	case errors.Is(err, mines.ErrConfiguration):
		return ErrCodeConfiguration
	case errors.Is(err, mines.ErrInvalidCoordinate):
		return ErrCodeInvalidCoordinate
	case errors.Is(err, mines.ErrNoRound):
		return ErrCodeNoRound
	case errors.Is(err, ErrInvalidPayloadSize), errors.Is(err, ErrPayloadTooLarge), errors.Is(err, ErrMalformed):
		return ErrCodeMalformed
	default:
		return ErrCodeInternal
	}
}

func EncodeCellValue(cell mines.Cell) byte {
	switch cell.Kind {
	case mines.Count:
		return byte(cell.Count)
	case mines.Mine:
		return ShowMine
	case mines.Detonated:
		return ShowDetonated
	default:
		return ShowHidden
	}
}

func DecodeCellValue(value byte) (mines.Cell, error) {
	switch {
	case value <= 8:
		return mines.CountCell(int(value)), nil
	case value == ShowMine:
		return mines.MineCell(), nil
	case value == ShowDetonated:
		return mines.DetonatedCell(), nil
	case value == ShowHidden:
		return mines.HiddenCell(), nil
	default:
		return mines.Cell{}, fmt.Errorf("%w: unknown cell value 0x%02x", ErrMalformed, value)
	}
}

func encodeCellUpdate(cell mines.UpdatedCell) []byte {
	data := make([]byte, UpdateCellByteLength)
	copy(data[0:4], intToBytes(cell.X))
	copy(data[4:8], intToBytes(cell.Y))
	data[8] = EncodeCellValue(cell.Cell)
	return data
}

func EncodeCellUpdates(cells []mines.UpdatedCell) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(CellUpdate))
	buf.WriteByte(byte(0x00))
	payloadLength := len(cells) * UpdateCellByteLength
	err := writePayloadLength(&buf, payloadLength)
	if err != nil {
		return nil, err
	}
	for _, cell := range cells {
		buf.Write(encodeCellUpdate(cell))
	}
	if payloadLength+HeaderLength != buf.Len() {
		return nil, fmt.Errorf("Incorrect payload length while encoding cell updates")
	}
	return buf.Bytes(), nil
}

func decodeCellUpdate(data []byte) (*mines.UpdatedCell, error) {
	if len(data) != UpdateCellByteLength {
		return nil, fmt.Errorf("incorrect byte length to decode cell update (%d)", len(data))
	}
	cell, err := DecodeCellValue(data[8])
	if err != nil {
		return nil, err
	}
	return &mines.UpdatedCell{
		X:    bytesToInt(data[0:4]),
		Y:    bytesToInt(data[4:8]),
		Cell: cell}, nil
}

func DecodeCellUpdates(data []byte) ([]mines.UpdatedCell, error) {
	payloadLength, err := checkAndDecodeLength(data, CellUpdate)
	if err != nil {
		return nil, err
	}
	payload := data[HeaderLength:]
	if payloadLength%UpdateCellByteLength != 0 {
		return nil, fmt.Errorf("%w: update cells payload length %d", ErrInvalidPayloadSize, payloadLength)
	}
	cells := make([]mines.UpdatedCell, payloadLength/UpdateCellByteLength)
	for i := range payloadLength / UpdateCellByteLength {
		cell, err := decodeCellUpdate(payload[i*UpdateCellByteLength : (i+1)*UpdateCellByteLength])
		if err != nil {
			return nil, err
		}
		cells[i] = *cell
	}
	return cells, nil
}
