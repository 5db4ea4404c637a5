package tts

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Hard per-message ceiling imposed by the service's WebSocket stack.
	websocketMaxSize = 1 << 16
	// Safety margin subtracted from the computed payload budget.
	messageSizeMargin = 50
)

var (
	shortVoicePattern = regexp.MustCompile(`^([a-z]{2,})-([A-Z]{2,})-(.+Neural)$`)
	longVoicePattern  = regexp.MustCompile(`^Microsoft Server Speech Text to Speech Voice \(.+,.+\)$`)
	ratePattern       = regexp.MustCompile(`^[+-]\d+%$`)
	pitchPattern      = regexp.MustCompile(`^[+-]\d+Hz$`)
)

// normalizeVoice expands a short-form voice identifier such as
// "en-US-AriaNeural" (optionally with a sub-region, "zh-CN-liaoning-XiaobeiNeural")
// into the long descriptive form the browser sends. Long-form input passes
// through. Anything that does not validate as long form afterwards is an error.
func normalizeVoice(voice string) (string, error) {
	if m := shortVoicePattern.FindStringSubmatch(voice); m != nil {
		lang, region, name := m[1], m[2], m[3]
		if i := strings.Index(name, "-"); i >= 0 {
			region = region + "-" + name[:i]
			name = name[i+1:]
		}
		voice = fmt.Sprintf("Microsoft Server Speech Text to Speech Voice (%s-%s, %s)", lang, region, name)
	}
	if !longVoicePattern.MatchString(voice) {
		return "", fmt.Errorf("invalid voice %q", voice)
	}
	return voice, nil
}

func validateRate(rate string) error {
	if !ratePattern.MatchString(rate) {
		return fmt.Errorf("invalid rate %q", rate)
	}
	return nil
}

func validateVolume(volume string) error {
	if !ratePattern.MatchString(volume) {
		return fmt.Errorf("invalid volume %q", volume)
	}
	return nil
}

func validatePitch(pitch string) error {
	if !pitchPattern.MatchString(pitch) {
		return fmt.Errorf("invalid pitch %q", pitch)
	}
	return nil
}

// mkSSML renders one chunk of escaped text into the fixed SSML template. The
// text must already be escaped; the voice and prosody values must already be
// validated.
func mkSSML(text []byte, voice, rate, volume, pitch string) string {
	return fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>"+
			"<voice name='%s'><prosody pitch='%s' rate='%s' volume='%s'>"+
			"%s</prosody></voice></speak>",
		voice, pitch, rate, volume, text)
}

// dateToString returns the JavaScript-style date string the browser puts in
// X-Timestamp headers. Always UTC.
func dateToString(now time.Time) string {
	return now.UTC().Format("Mon Jan 02 2006 15:04:05") +
		" GMT+0000 (Coordinated Universal Time)"
}

// ssmlHeadersPlusData frames an SSML payload with its pseudo-HTTP headers.
// The trailing "Z" on X-Timestamp is wrong but matches what the browser
// sends, and the service expects it.
func ssmlHeadersPlusData(requestID, timestamp, ssml string) string {
	return "X-RequestId:" + requestID + "\r\n" +
		"Content-Type:application/ssml+xml\r\n" +
		"X-Timestamp:" + timestamp + "Z\r\n" +
		"Path:ssml\r\n\r\n" +
		ssml
}

// calcMaxMesgSize returns the text byte budget for one SSML message: the
// wire ceiling minus the rendered size of an empty-text payload minus a
// fixed margin.
func calcMaxMesgSize(voice, rate, volume, pitch string) int {
	overhead := len(ssmlHeadersPlusData(
		connectID(),
		dateToString(time.Now()),
		mkSSML(nil, voice, rate, volume, pitch),
	)) + messageSizeMargin
	return websocketMaxSize - overhead
}

// connectID returns a fresh UUID without dashes, used for connection and
// request identifiers.
func connectID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
