package core

import (
	"errors"
	"strings"
)

// Bus errors. Primitives report failure through I2CState; these values
// are what I2CState.Err, Tx and the command handlers return.
var (
	// ErrBusBusy indicates a Start on an instance whose bracket is still open.
	ErrBusBusy = errors.New("i2c: bus already busy")

	// ErrTimeout indicates the condition-wait budget ran out.
	ErrTimeout = errors.New("i2c: condition timeout")

	// ErrWriteCollision indicates the transmit register was written while busy.
	ErrWriteCollision = errors.New("i2c: write collision")

	// ErrOverrun indicates a byte was received while the previous one was unread.
	ErrOverrun = errors.New("i2c: receive overrun")

	ErrAddressNack = errors.New("i2c: address not acknowledged")
	ErrDataNack    = errors.New("i2c: data not acknowledged")

	// ErrArbitrationLost indicates another master won the bus. It is
	// detected, never resolved.
	ErrArbitrationLost = errors.New("i2c: arbitration lost")

	// ErrInvalidArgument indicates an empty buffer or out-of-range argument.
	ErrInvalidArgument = errors.New("i2c: invalid argument")

	// ErrNotConfigured indicates a module that was never initialised.
	ErrNotConfigured = errors.New("i2c: module not configured")

	// ErrBusError is returned for a failure with no finer classification.
	ErrBusError = errors.New("i2c: bus error")

	// ErrShutdown is returned by bus commands after emergency_stop, until
	// the host sends config_reset.
	ErrShutdown = errors.New("i2c: firmware is shut down")
)

// errorCodes is the wire numbering of the error values; 0 is success.
// Append only.
var errorCodes = [...]error{
	nil,
	ErrBusBusy,
	ErrTimeout,
	ErrWriteCollision,
	ErrOverrun,
	ErrAddressNack,
	ErrDataNack,
	ErrArbitrationLost,
	ErrInvalidArgument,
	ErrNotConfigured,
	ErrBusError,
	ErrShutdown,
}

// ErrorCode returns the wire code of err. Unknown errors map to the
// ErrBusError code.
func ErrorCode(err error) uint8 {
	if err == nil {
		return 0
	}
	for i, e := range errorCodes[1:] {
		if errors.Is(err, e) {
			return uint8(i + 1)
		}
	}
	return ErrorCode(ErrBusError)
}

// CodeError maps a wire code back to its error value.
func CodeError(code uint8) error {
	if int(code) < len(errorCodes) {
		return errorCodes[code]
	}
	return ErrBusError
}

// errorNames names the codes in the dictionary.
func errorNames() []string {
	names := make([]string, len(errorCodes))
	names[0] = "ok"
	for i, e := range errorCodes[1:] {
		names[i+1] = strings.TrimPrefix(e.Error(), "i2c: ")
	}
	return names
}

// opError classifies a failed bus operation.
func opError(b *I2CBus, ok bool) error {
	if ok {
		return nil
	}
	if err := b.state.Err(); err != nil {
		return err
	}
	if b.busy {
		return ErrBusBusy
	}
	return ErrBusError
}
