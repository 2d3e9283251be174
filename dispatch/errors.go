package dispatch

import "github.com/greenridge/bacstack/tag"

// errorBodyLen and encodeErrorBody write the two-element
// Error-Class/Error-Code application-tagged enumerated pair that
// follows an Error PDU's header (clause 21, "Error" parameter).
func errorBodyLen(se *ServiceError) int {
	return tag.EncodeApplication(nil, tag.Enumerated(uint32(se.Class))) +
		tag.EncodeApplication(nil, tag.Enumerated(uint32(se.Code)))
}

func encodeErrorBody(buf []byte, se *ServiceError) {
	n := tag.EncodeApplication(buf, tag.Enumerated(uint32(se.Class)))
	tag.EncodeApplication(buf[n:], tag.Enumerated(uint32(se.Code)))
}
