package servicesock

import (
	"encoding/json"
	"fmt"

	"github.com/gophpeek/phpeek-pm/internal/registry"
)

// statsPayload mirrors the JSON schema a worker's control socket replies
// with to a GET (spec.md §4.F schema).
type statsPayload struct {
	InCnt  int                `json:"in_cnt"`
	OutCnt int                `json:"out_cnt"`
	In     []inStatsPayload   `json:"in"`
	Out    []outStatsPayload  `json:"out"`
}

type inStatsPayload struct {
	IfcID    string `json:"ifc_id"`
	Messages uint64 `json:"messages"`
	Buffers  uint64 `json:"buffers"`
	IfcType  byte   `json:"ifc_type"`
	IfcState byte   `json:"ifc_state"`
}

type outStatsPayload struct {
	IfcID           string `json:"ifc_id"`
	SentMessages    uint64 `json:"sent-messages"`
	DroppedMessages uint64 `json:"dropped-messages"`
	Buffers         uint64 `json:"buffers"`
	Autoflushes     uint64 `json:"autoflushes"`
	NumClients      uint32 `json:"num_clients"`
	Type            byte   `json:"type"`
}

// ErrCountMismatch is returned by ApplyStats when the payload's in_cnt or
// out_cnt does not match the registry's configured interface counts
// (spec.md §4.F consistency checks).
type ErrCountMismatch struct {
	Instance string
	WantIn   int
	GotIn    int
	WantOut  int
	GotOut   int
}

func (e *ErrCountMismatch) Error() string {
	return fmt.Sprintf("servicesock: %s: interface count mismatch (in: want %d got %d, out: want %d got %d)",
		e.Instance, e.WantIn, e.GotIn, e.WantOut, e.GotOut)
}

// ApplyStats decodes a stats payload and, if the interface counts exactly
// match the instance's configured interfaces, updates the registry in
// place, array index mapping to registry order. A count mismatch updates
// nothing and returns *ErrCountMismatch so the caller can disconnect and
// discard per spec.md §4.F.
func ApplyStats(inst *registry.Instance, raw []byte) error {
	var payload statsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("servicesock: parse stats for %s: %w", inst.Name, err)
	}

	wantIn, wantOut := len(inst.Inputs), len(inst.Outputs)
	if payload.InCnt != wantIn || payload.OutCnt != wantOut ||
		len(payload.In) != wantIn || len(payload.Out) != wantOut {
		return &ErrCountMismatch{
			Instance: inst.Name,
			WantIn:   wantIn,
			GotIn:    payload.InCnt,
			WantOut:  wantOut,
			GotOut:   payload.OutCnt,
		}
	}

	for i, in := range payload.In {
		inst.Inputs[i].RecvMsg = in.Messages
		inst.Inputs[i].RecvBuf = in.Buffers
		inst.Inputs[i].Type = registry.IfcType(in.IfcType)
		inst.Inputs[i].State = registry.IfcState(in.IfcState)
	}
	for i, out := range payload.Out {
		inst.Outputs[i].SentMsg = out.SentMessages
		inst.Outputs[i].DroppedMsg = out.DroppedMessages
		inst.Outputs[i].SentBuf = out.Buffers
		inst.Outputs[i].Autoflush = out.Autoflushes
		inst.Outputs[i].NumClients = out.NumClients
		inst.Outputs[i].Type = registry.IfcType(out.Type)
	}
	return nil
}
