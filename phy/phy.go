// Package phy provides register-model simulations of the audio output blocks: the stereo DAC,
// the I2S transmitter with its sample rate detector, the S/PDIF transmitter and the PDM transmitter.
//
// Each block implements aout.PhyDevice. The blocks keep their own reference counts and register
// state; arbitration between sessions is left to the session manager.
package phy

import (
	"fmt"

	"github.com/gen2brain/aout"
)

// Default DMA engine name of the output blocks.
const DefaultDMAName = "DMA_0"

// fifoArg decodes a FIFO index passed by value or through a pointer.
func fifoArg(cmd aout.Command, arg any) (aout.FifoType, error) {
	switch v := arg.(type) {
	case aout.FifoType:
		return v, nil
	case *aout.FifoType:
		if v != nil {
			return *v, nil
		}
	case uint8:
		return aout.FifoType(v), nil
	case *uint8:
		if v != nil {
			return aout.FifoType(*v), nil
		}
	case uint32:
		return aout.FifoType(v), nil
	case *uint32:
		if v != nil {
			return aout.FifoType(*v), nil
		}
	case *aout.Param:
		if v != nil {
			return v.OutFifo, nil
		}
	}

	return 0, fmt.Errorf("%s: fifo argument %T: %w", cmd, arg, aout.ErrInvalidArgument)
}

// flagArg decodes an on/off argument.
func flagArg(cmd aout.Command, arg any) (bool, error) {
	switch v := arg.(type) {
	case bool:
		return v, nil
	case *bool:
		if v != nil {
			return *v, nil
		}
	case uint8:
		return v != 0, nil
	case *uint8:
		if v != nil {
			return *v != 0, nil
		}
	case int:
		return v != 0, nil
	}

	return false, fmt.Errorf("%s: flag argument %T: %w", cmd, arg, aout.ErrInvalidArgument)
}

// fifoCmdArg returns the packed FIFO command word of a PHY FIFO command.
func fifoCmdArg(cmd aout.Command, arg any) (*uint32, error) {
	v, ok := arg.(*uint32)
	if !ok || v == nil {
		return nil, fmt.Errorf("%s: fifo command argument %T: %w", cmd, arg, aout.ErrInvalidArgument)
	}

	return v, nil
}

// sampleRateArg decodes a sample rate passed by value or through a pointer.
func sampleRateArg(cmd aout.Command, arg any) (aout.SampleRate, error) {
	var sr aout.SampleRate

	switch v := arg.(type) {
	case aout.SampleRate:
		sr = v
	case *aout.SampleRate:
		if v != nil {
			sr = *v
		}
	case uint8:
		sr = aout.SampleRate(v)
	case *uint8:
		if v != nil {
			sr = aout.SampleRate(*v)
		}
	}

	if !sr.Valid() {
		return 0, fmt.Errorf("%s: sample rate argument %v: %w", cmd, arg, aout.ErrInvalidArgument)
	}

	return sr, nil
}

// setSampleRate stores a sample rate through an out argument.
func setSampleRate(cmd aout.Command, arg any, sr aout.SampleRate) error {
	switch v := arg.(type) {
	case *aout.SampleRate:
		if v != nil {
			*v = sr

			return nil
		}
	case *uint8:
		if v != nil {
			*v = uint8(sr)

			return nil
		}
	case *uint32:
		if v != nil {
			*v = sr.Hz()

			return nil
		}
	}

	return fmt.Errorf("%s: result argument %T: %w", cmd, arg, aout.ErrInvalidArgument)
}

// dmaInfoArg returns the request of PHY_CMD_GET_AOUT_DMA_INFO.
func dmaInfoArg(arg any) (*aout.DMAInfoRequest, error) {
	req, ok := arg.(*aout.DMAInfoRequest)
	if !ok || req == nil {
		return nil, fmt.Errorf("%s: argument %T: %w", aout.PHY_CMD_GET_AOUT_DMA_INFO, arg, aout.ErrInvalidArgument)
	}

	return req, nil
}
