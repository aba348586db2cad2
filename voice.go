package main

import (
	"log"
	"os/exec"
	"runtime"
)

// LogAnnouncer writes announcements to the process log. It is always
// attached so operators see every emission even with voice and email off.
type LogAnnouncer struct{}

func (LogAnnouncer) Announce(kind AnnouncementKind, message string) error {
	switch kind {
	case AnnounceAllClear:
		log.Printf("🟢 %s", message)
	default:
		log.Printf("🔴 %s", message)
	}
	return nil
}

// SpeechAnnouncer speaks announcements through the platform text-to-speech
// binary. Synthesis runs detached so a slow or wedged engine never stalls
// the tick loop; its failures are logged and swallowed.
type SpeechAnnouncer struct {
	binary string
}

// NewSpeechAnnouncer picks the TTS binary for the platform, or the
// configured override.
func NewSpeechAnnouncer(override string) *SpeechAnnouncer {
	binary := override
	if binary == "" {
		if runtime.GOOS == "darwin" {
			binary = "say"
		} else {
			binary = "espeak"
		}
	}
	return &SpeechAnnouncer{binary: binary}
}

func (sa *SpeechAnnouncer) Announce(kind AnnouncementKind, message string) error {
	cmd := exec.Command(sa.binary, message)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("⚠️  Speech synthesis (%s) failed: %v", sa.binary, err)
		}
	}()
	return nil
}

// LogAudioController is the default audio collaborator: it only logs the
// quiet-track edge. A real player implements AudioController and
// subscribes in its place.
type LogAudioController struct{}

func (LogAudioController) SetQuiet(quiet bool) {
	if quiet {
		log.Printf("🎵 Quiet: resuming background track")
	} else {
		log.Printf("🔇 Not quiet: pausing background track")
	}
}
