package detour

import "errors"

var (
	ErrFailure         = errors.New("operation failed")
	ErrWrongMagic      = errors.New("input data is not recognized")
	ErrWrongVersion    = errors.New("input data is in wrong version")
	ErrOutOfMemory     = errors.New("operation ran out of memory")
	ErrInvalidParam    = errors.New("an input parameter was invalid")
	ErrBufferTooSmall  = errors.New("result buffer for the query was too small")
	ErrOutOfNodes      = errors.New("query ran out of nodes during search")
	ErrPartialResult   = errors.New("query did not reach the end location")
	ErrAlreadyOccupied = errors.New("a tile is already assigned to the location")
)

var detailErrors = []struct {
	bit DtStatus
	err error
}{
	{DT_WRONG_MAGIC, ErrWrongMagic},
	{DT_WRONG_VERSION, ErrWrongVersion},
	{DT_OUT_OF_MEMORY, ErrOutOfMemory},
	{DT_INVALID_PARAM, ErrInvalidParam},
	{DT_BUFFER_TOO_SMALL, ErrBufferTooSmall},
	{DT_OUT_OF_NODES, ErrOutOfNodes},
	{DT_PARTIAL_RESULT, ErrPartialResult},
	{DT_ALREADY_OCCUPIED, ErrAlreadyOccupied},
}
