package interceptor

import (
	"github.com/pion/interceptor"
)

// RTCP feedback values negotiated in SDP (a=rtcp-fb) for TMMBR/TMMBN.
const (
	// FeedbackTypeCCM is the codec control message feedback type (RFC 5104).
	FeedbackTypeCCM = "ccm"

	// FeedbackParameterTMMBR selects TMMBR/TMMBN within "ccm".
	FeedbackParameterTMMBR = "tmmbr"
)

// HasFeedback reports whether fbs contains the given type and parameter.
func HasFeedback(fbs []interceptor.RTCPFeedback, typ, parameter string) bool {
	for _, fb := range fbs {
		if fb.Type == typ && fb.Parameter == parameter {
			return true
		}
	}
	return false
}

// SupportsTMMBR reports whether a stream negotiated "ccm tmmbr". Streams
// without it must not be limited by TMMBR.
func SupportsTMMBR(fbs []interceptor.RTCPFeedback) bool {
	return HasFeedback(fbs, FeedbackTypeCCM, FeedbackParameterTMMBR)
}
