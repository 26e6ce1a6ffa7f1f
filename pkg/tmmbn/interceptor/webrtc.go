package interceptor

import (
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// ConfigureTMMBN advertises "ccm tmmbr" for video codecs on m and registers
// a TMMBN interceptor factory with r.
func ConfigureTMMBN(m *webrtc.MediaEngine, r *interceptor.Registry, opts ...FactoryOption) error {
	factory, err := NewInterceptorFactory(opts...)
	if err != nil {
		return err
	}

	m.RegisterFeedback(webrtc.RTCPFeedback{
		Type:      FeedbackTypeCCM,
		Parameter: FeedbackParameterTMMBR,
	}, webrtc.RTPCodecTypeVideo)
	r.Add(factory)
	return nil
}
