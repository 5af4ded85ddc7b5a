package locator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arloliu/go-tekdaqc/board"
	"github.com/arloliu/go-tekdaqc/internal/util"
)

// layout of a discovery response datagram
const (
	idxType          = 3
	idxSerialStart   = 4
	idxSerialEnd     = 36
	idxMACStart      = 40
	idxMACEnd        = 46
	idxFirmwareStart = 46
	idxFirmwareEnd   = 50
	idxTitleStart    = 50
	idxTitleEnd      = 114

	// ResponseSize is the minimum length of a discovery response.
	ResponseSize = idxTitleEnd
)

var ErrShortResponse = errors.New("locator: short discovery response")

// Response is the identity a board reports to a discovery request.
type Response struct {
	HostIP   string `msgpack:"host"`
	Type     byte   `msgpack:"type"`
	Serial   string `msgpack:"serial"`
	MAC      string `msgpack:"mac"`
	Firmware string `msgpack:"firmware"`
	Title    string `msgpack:"title"`
}

// ParseResponse decodes a discovery datagram received from hostIP.
func ParseResponse(hostIP string, data []byte) (*Response, error) {
	if len(data) < ResponseSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortResponse, len(data))
	}

	mac := make([]string, 0, idxMACEnd-idxMACStart)
	for _, b := range data[idxMACStart:idxMACEnd] {
		mac = append(mac, fmt.Sprintf("%02x", b))
	}

	return &Response{
		HostIP:   hostIP,
		Type:     data[idxType],
		Serial:   util.CString(data[idxSerialStart:idxSerialEnd]),
		MAC:      strings.Join(mac, ":"),
		Firmware: util.JoinInts(data[idxFirmwareStart:idxFirmwareEnd], "."),
		Title:    util.CString(data[idxTitleStart:idxTitleEnd]),
	}, nil
}

// Board returns the capabilities of the responding board revision.
func (r *Response) Board() (board.Board, error) {
	return board.ForRevision(r.Type)
}

func (r *Response) String() string {
	return fmt.Sprintf("Tekdaqc[serial=%s type=%c host=%s mac=%s firmware=%s title=%q]",
		r.Serial, r.Type, r.HostIP, r.MAC, r.Firmware, r.Title)
}

// plainResponse has no methods, so msgpack encodes its fields instead of calling MarshalBinary.
type plainResponse Response

// MarshalBinary encodes the response with msgpack.
func (r *Response) MarshalBinary() ([]byte, error) {
	return msgpack.Marshal((*plainResponse)(r))
}

// UnmarshalBinary decodes a response encoded by MarshalBinary.
func (r *Response) UnmarshalBinary(data []byte) error {
	var p plainResponse
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("locator: decode response: %w", err)
	}
	*r = Response(p)

	return nil
}
