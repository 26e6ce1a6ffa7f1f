package main

import (
	"github.com/pion/rtcp"

	"github.com/thesyncim/tmmbn/pkg/tmmbn"
)

// report adapts an empty pion receiver report to tmmbn.Packet so it can share
// datagrams with notifications.
type report struct {
	data []byte
}

func newReport(ssrc uint32) *report {
	data, err := (&rtcp.ReceiverReport{SSRC: ssrc}).Marshal()
	if err != nil {
		panic(err)
	}
	return &report{data: data}
}

func (r *report) BlockLength() int {
	return len(r.data)
}

func (r *report) Create(buf []byte, index *int, maxLength int, handler tmmbn.BufferFullHandler) error {
	for *index+len(r.data) > maxLength {
		if err := handler.OnBufferFull(buf, index); err != nil {
			return err
		}
	}
	*index += copy(buf[*index:], r.data)
	return nil
}
