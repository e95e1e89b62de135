package core

// I2CState is the sideband result of the last bus operation. It is
// overwritten by the next operation, so read it right after a failure.
type I2CState uint8

const (
	I2CStateIdle I2CState = iota
	I2CStateBusy
	I2CStateError
	I2CStateTimeout
	I2CStateAddressNack
	I2CStateDataNack
	I2CStateArbitrationLost
	I2CStateBusCollision
	I2CStateOverrun
	I2CStateSuccess
)

var stateNames = [...]string{
	I2CStateIdle:            "idle",
	I2CStateBusy:            "busy",
	I2CStateError:           "error",
	I2CStateTimeout:         "timeout",
	I2CStateAddressNack:     "address-nack",
	I2CStateDataNack:        "data-nack",
	I2CStateArbitrationLost: "arbitration-lost",
	I2CStateBusCollision:    "bus-collision",
	I2CStateOverrun:         "overrun",
	I2CStateSuccess:         "success",
}

func (s I2CState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// IsError reports whether s classifies a failure.
func (s I2CState) IsError() bool {
	switch s {
	case I2CStateIdle, I2CStateBusy, I2CStateSuccess:
		return false
	}
	return true
}

// Err maps s onto the package error values. Non-error states return nil.
func (s I2CState) Err() error {
	switch s {
	case I2CStateTimeout:
		return ErrTimeout
	case I2CStateAddressNack:
		return ErrAddressNack
	case I2CStateDataNack:
		return ErrDataNack
	case I2CStateArbitrationLost:
		return ErrArbitrationLost
	case I2CStateBusCollision:
		return ErrWriteCollision
	case I2CStateOverrun:
		return ErrOverrun
	case I2CStateError:
		return ErrBusError
	}
	return nil
}

// I2CEvent is a slave-mode event delivered to the bus callback.
type I2CEvent uint8

const (
	EventStart I2CEvent = iota
	EventStop
	EventDataReceived
	EventDataRequested
)

func (e I2CEvent) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventStop:
		return "stop"
	case EventDataReceived:
		return "data-received"
	case EventDataRequested:
		return "data-requested"
	default:
		return "unknown"
	}
}
