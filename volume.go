package aout

// DAC digital volume levels. Volumes are expressed in 1/10000 dB.
const (
	VolumeLevel0dB  = 0xBE
	VolumeLevelMax  = 0xFF
	VolumeStep      = 375  // 0.0375 dB per level.
	volumeGainSteps = 0x40 // Gain steps above 0 dB before the level saturates.
)

// VolumeToLevel converts a volume in 1/10000 dB to a DAC volume level.
// Attenuation beyond the range saturates at level 0; gain of more than 0x40 steps saturates at VolumeLevelMax.
func VolumeToLevel(vol int32) uint8 {
	if vol < 0 {
		index := volumeIndex(-int64(vol))
		if index > VolumeLevel0dB {
			return 0
		}

		return uint8(VolumeLevel0dB - index)
	}

	index := volumeIndex(int64(vol))
	if index > volumeGainSteps {
		return VolumeLevelMax
	}

	return uint8(VolumeLevel0dB + index)
}

// LevelToVolume converts a DAC volume level back to 1/10000 dB.
func LevelToVolume(level uint8) int32 {
	if level < VolumeLevel0dB {
		return -int32(VolumeLevel0dB-level) * VolumeStep
	}

	return int32(level-VolumeLevel0dB) * VolumeStep
}

// IsMuteVolume reports whether vol hard-mutes the output path.
func IsMuteVolume(vol int32) bool {
	return vol <= VolumeMuteMin
}

func volumeIndex(v int64) int64 {
	return (v + VolumeStep - 1) / VolumeStep
}
