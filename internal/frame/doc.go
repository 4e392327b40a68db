// Package frame implements the Content-Length framing used between the
// driver and the backend.
//
// A frame is a header line, an empty separator line and a payload:
//
//	Content-Length: 4\r\n
//	\r\n
//	ping
//
// The declared length is the payload's byte length. Encoding is a pure
// transformation; decoding reads one frame at a time from a stream:
//
//	for msg, err := range frame.Messages(stdout) {
//	    if err != nil {
//	        return err
//	    }
//	    // handle msg
//	}
//
// Header and separator lines may end in "\r\n" or "\n". The separator must be
// empty; anything else is a [domain.ProtocolFormatError].
package frame
