package detour

import (
	"errors"
	"fmt"
	"strings"
)

type DtStatus uint32

// DtStatus carries one of the high level bits, optionally with detail bits in the low 24.
const (
	DT_FAILURE     DtStatus = 1 << 31
	DT_SUCCESS     DtStatus = 1 << 30
	DT_IN_PROGRESS DtStatus = 1 << 29 // sliced search not finished

	DT_STATUS_DETAIL_MASK DtStatus = 0x0ffffff
	DT_WRONG_MAGIC        DtStatus = 1 << 0
	DT_WRONG_VERSION      DtStatus = 1 << 1
	DT_OUT_OF_MEMORY      DtStatus = 1 << 2
	DT_INVALID_PARAM      DtStatus = 1 << 3
	DT_BUFFER_TOO_SMALL   DtStatus = 1 << 4 // results were dropped to respect a max count
	DT_OUT_OF_NODES       DtStatus = 1 << 5 // search ran out of nodes, result may be suboptimal
	DT_PARTIAL_RESULT     DtStatus = 1 << 6 // goal not reached, best effort result
	DT_ALREADY_OCCUPIED   DtStatus = 1 << 7 // a tile is already loaded at that cell and layer
)

func (status DtStatus) DtStatusSucceed() bool    { return status&DT_SUCCESS != 0 }
func (status DtStatus) DtStatusFailed() bool     { return status&DT_FAILURE != 0 }
func (status DtStatus) DtStatusInProgress() bool { return status&DT_IN_PROGRESS != 0 }

// DtStatusDetail reports whether any bit of detail is set.
func (status DtStatus) DtStatusDetail(detail DtStatus) bool { return status&detail != 0 }

var statusNames = []struct {
	bit  DtStatus
	name string
}{
	{DT_FAILURE, "failure"},
	{DT_SUCCESS, "success"},
	{DT_IN_PROGRESS, "in_progress"},
	{DT_WRONG_MAGIC, "wrong_magic"},
	{DT_WRONG_VERSION, "wrong_version"},
	{DT_OUT_OF_MEMORY, "out_of_memory"},
	{DT_INVALID_PARAM, "invalid_param"},
	{DT_BUFFER_TOO_SMALL, "buffer_too_small"},
	{DT_OUT_OF_NODES, "out_of_nodes"},
	{DT_PARTIAL_RESULT, "partial_result"},
	{DT_ALREADY_OCCUPIED, "already_occupied"},
}

func (status DtStatus) String() string {
	if status == 0 {
		return "none"
	}
	var parts []string
	for _, n := range statusNames {
		if status&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("status(%#x)", uint32(status))
	}
	return strings.Join(parts, "|")
}

// Err converts a failed status into an error wrapping the matching sentinels.
// Success and in-progress statuses yield nil, even when detail bits are set.
func (status DtStatus) Err() error {
	if !status.DtStatusFailed() {
		return nil
	}
	errs := []error{ErrFailure}
	for _, d := range detailErrors {
		if status&d.bit != 0 {
			errs = append(errs, d.err)
		}
	}
	return &StatusError{Status: status, err: errors.Join(errs...)}
}

// StatusError carries the raw status next to the sentinel errors it maps to.
type StatusError struct {
	Status DtStatus
	err    error
}

func (e *StatusError) Error() string {
	return "detour: " + e.Status.String()
}

func (e *StatusError) Unwrap() error {
	return e.err
}
