package tts

import "fmt"

// The service only accepts connections that look like they come from the
// Edge browser's read-aloud feature. Endpoint, shared secret and header sets
// below are impersonation data, not protocol logic; Communicate and the
// voices client take them as injectable defaults so tests can point at a
// local server.
const (
	baseURL            = "api.msedgeservices.com/tts/cognitiveservices"
	TrustedClientToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"

	DefaultWSSURL       = "wss://" + baseURL + "/websocket/v1?Ocp-Apim-Subscription-Key=" + TrustedClientToken
	DefaultVoiceListURL = "https://" + baseURL + "/voices/list?Ocp-Apim-Subscription-Key=" + TrustedClientToken

	DefaultVoice = "en-US-EmmaMultilingualNeural"

	chromiumFullVersion  = "140.0.3485.14"
	chromiumMajorVersion = "140"

	// SecMSGECVersion is sent alongside the anti-throttling token.
	SecMSGECVersion = "1-" + chromiumFullVersion
)

var baseHeaders = map[string]string{
	"User-Agent": fmt.Sprintf(
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"+
			" (KHTML, like Gecko) Chrome/%s.0.0.0 Safari/537.36 Edg/%s.0.0.0",
		chromiumMajorVersion, chromiumMajorVersion),
	"Accept-Encoding": "gzip, deflate, br",
	"Accept-Language": "en-US,en;q=0.9",
}

// Handshake headers for the synthesis WebSocket. Sec-WebSocket-* fields are
// managed by the websocket library and must not appear here.
var wssHeaders = mergeHeaders(map[string]string{
	"Pragma":        "no-cache",
	"Cache-Control": "no-cache",
	"Origin":        "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold",
}, baseHeaders)

// VoiceListHeaders is the header set for the out-of-band voice catalog GET.
var VoiceListHeaders = mergeHeaders(map[string]string{
	"Authority": "speech.platform.bing.com",
	"Sec-CH-UA": fmt.Sprintf(`" Not;A Brand";v="99", "Microsoft Edge";v="%s", "Chromium";v="%s"`,
		chromiumMajorVersion, chromiumMajorVersion),
	"Sec-CH-UA-Mobile": "?0",
	"Accept":           "*/*",
	"Sec-Fetch-Site":   "none",
	"Sec-Fetch-Mode":   "cors",
	"Sec-Fetch-Dest":   "empty",
}, baseHeaders)

func mergeHeaders(dst, src map[string]string) map[string]string {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
