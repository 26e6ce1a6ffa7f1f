// Package interceptor provides a Pion WebRTC interceptor that answers RTCP
// TMMBR requests with TMMBN notifications (RFC 5104, section 3.5.4).
//
// The interceptor sits on the media sender. It reads incoming TMMBR packets,
// keeps one (bitrate, overhead) tuple per requester and media stream, reduces
// them to the bounding set and announces that set in a TMMBN through the RTCP
// writer. It also measures the packet rate of every local stream that
// negotiated "ccm tmmbr" and reports the resulting net media bitrate limit,
// which the application applies to its encoder.
//
// # Quick Start
//
//	import (
//	    "github.com/pion/interceptor"
//	    "github.com/pion/webrtc/v4"
//	    tmmbnint "github.com/thesyncim/tmmbn/pkg/tmmbn/interceptor"
//	)
//
//	func setupPeerConnection() (*webrtc.PeerConnection, error) {
//	    m := &webrtc.MediaEngine{}
//	    if err := m.RegisterDefaultCodecs(); err != nil {
//	        return nil, err
//	    }
//
//	    i := &interceptor.Registry{}
//	    err := tmmbnint.ConfigureTMMBN(m, i,
//	        tmmbnint.WithOnLimit(func(ssrc uint32, bitrate uint64) {
//	            // reconfigure the encoder of ssrc
//	        }),
//	    )
//	    if err != nil {
//	        return nil, err
//	    }
//
//	    api := webrtc.NewAPI(
//	        webrtc.WithMediaEngine(m),
//	        webrtc.WithInterceptorRegistry(i),
//	    )
//	    return api.NewPeerConnection(webrtc.Configuration{})
//	}
//
// # How It Works
//
// 1. BindLocalStream tracks every outgoing stream whose codec negotiated the
// "ccm tmmbr" feedback and meters its packet rate.
//
// 2. BindRTCPReader parses incoming compound RTCP. TMMBR entries addressed to
// a tracked stream replace the previous tuple of the same requester, and the
// interceptor answers right away.
//
// 3. Once the RTCP writer is bound, a background loop expires stale requests,
// re-announces the bounding set periodically and announces changes.
package interceptor
