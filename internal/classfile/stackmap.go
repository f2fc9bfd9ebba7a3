package classfile

// Verification type tags.
const (
	VTTop               uint8 = 0
	VTInteger           uint8 = 1
	VTFloat             uint8 = 2
	VTDouble            uint8 = 3
	VTLong              uint8 = 4
	VTNull              uint8 = 5
	VTUninitializedThis uint8 = 6
	VTObject            uint8 = 7
	VTUninitialized     uint8 = 8
)

// VerificationType is one verification_type_info. Index is the Class entry
// for VTObject and the code offset of the `new` for VTUninitialized.
type VerificationType struct {
	Tag   uint8
	Index uint16
}

// FrameKind classifies a stack map frame by its frame_type range.
type FrameKind uint8

const (
	FrameSame FrameKind = iota
	FrameSameLocals1
	FrameSameLocals1Extended
	FrameChop
	FrameSameExtended
	FrameAppend
	FrameFull
)

// Frame is one StackMapTable entry. Type holds the raw frame_type byte; for
// same and same_locals_1 frames the delta is carried by OffsetDelta and the
// byte is recomputed on encode.
type Frame struct {
	Type        uint8
	OffsetDelta uint16
	Locals      []VerificationType
	Stack       []VerificationType
}

// Kind classifies the frame.
func (f *Frame) Kind() FrameKind {
	switch {
	case f.Type <= 63:
		return FrameSame
	case f.Type <= 127:
		return FrameSameLocals1
	case f.Type == 247:
		return FrameSameLocals1Extended
	case f.Type >= 248 && f.Type <= 250:
		return FrameChop
	case f.Type == 251:
		return FrameSameExtended
	case f.Type >= 252 && f.Type <= 254:
		return FrameAppend
	}
	return FrameFull
}

// SameFrame returns a same_frame with the given delta.
func SameFrame(delta uint16) Frame {
	if delta <= 63 {
		return Frame{Type: uint8(delta), OffsetDelta: delta}
	}
	return Frame{Type: 251, OffsetDelta: delta}
}

// ParseStackMapTable decodes a StackMapTable body.
func ParseStackMapTable(info []byte) ([]Frame, error) {
	r := newReader(info)
	n := int(r.u2("number_of_entries"))
	frames := make([]Frame, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		f := Frame{Type: r.u1("frame_type")}
		switch {
		case f.Type <= 63:
			f.OffsetDelta = uint16(f.Type)
		case f.Type <= 127:
			f.OffsetDelta = uint16(f.Type - 64)
			f.Stack = []VerificationType{readVerificationType(r)}
		case f.Type < 247:
			return nil, malformed("reserved stack map frame type %d", f.Type)
		case f.Type == 247:
			f.OffsetDelta = r.u2("offset_delta")
			f.Stack = []VerificationType{readVerificationType(r)}
		case f.Type <= 251:
			f.OffsetDelta = r.u2("offset_delta")
		case f.Type <= 254:
			f.OffsetDelta = r.u2("offset_delta")
			for k := 0; k < int(f.Type)-251; k++ {
				f.Locals = append(f.Locals, readVerificationType(r))
			}
		default:
			f.OffsetDelta = r.u2("offset_delta")
			nl := int(r.u2("number_of_locals"))
			for k := 0; k < nl && r.err == nil; k++ {
				f.Locals = append(f.Locals, readVerificationType(r))
			}
			ns := int(r.u2("number_of_stack_items"))
			for k := 0; k < ns && r.err == nil; k++ {
				f.Stack = append(f.Stack, readVerificationType(r))
			}
		}
		frames = append(frames, f)
	}
	r.expectEnd(AttrStackMapTable)
	if r.err != nil {
		return nil, r.err
	}
	return frames, nil
}

func readVerificationType(r *reader) VerificationType {
	vt := VerificationType{Tag: r.u1("verification tag")}
	switch vt.Tag {
	case VTObject, VTUninitialized:
		vt.Index = r.u2("verification index")
	default:
		if vt.Tag > VTUninitialized && r.err == nil {
			r.err = malformed("verification tag %d", vt.Tag)
		}
	}
	return vt
}

// EncodeStackMapTable encodes frames. Compact frame types are widened to
// their extended forms only when the delta no longer fits.
func EncodeStackMapTable(frames []Frame) ([]byte, error) {
	w := &writer{}
	w.count2(len(frames), "number_of_entries")
	for _, f := range frames {
		switch f.Kind() {
		case FrameSame:
			if f.OffsetDelta <= 63 {
				w.u1(uint8(f.OffsetDelta))
			} else {
				w.u1(251)
				w.u2(f.OffsetDelta)
			}
		case FrameSameLocals1, FrameSameLocals1Extended:
			if f.Kind() == FrameSameLocals1 && f.OffsetDelta <= 63 {
				w.u1(64 + uint8(f.OffsetDelta))
			} else {
				w.u1(247)
				w.u2(f.OffsetDelta)
			}
			writeVerificationTypes(w, f.Stack[:1])
		case FrameChop, FrameSameExtended:
			w.u1(f.Type)
			w.u2(f.OffsetDelta)
		case FrameAppend:
			w.u1(f.Type)
			w.u2(f.OffsetDelta)
			writeVerificationTypes(w, f.Locals)
		case FrameFull:
			w.u1(255)
			w.u2(f.OffsetDelta)
			w.count2(len(f.Locals), "number_of_locals")
			writeVerificationTypes(w, f.Locals)
			w.count2(len(f.Stack), "number_of_stack_items")
			writeVerificationTypes(w, f.Stack)
		}
	}
	return w.result()
}

func writeVerificationTypes(w *writer, vts []VerificationType) {
	for _, vt := range vts {
		w.u1(vt.Tag)
		if vt.Tag == VTObject || vt.Tag == VTUninitialized {
			w.u2(vt.Index)
		}
	}
}

// ShiftUninitialized moves every Uninitialized(offset) entry by delta.
func (f *Frame) ShiftUninitialized(delta uint16) {
	for i := range f.Locals {
		if f.Locals[i].Tag == VTUninitialized {
			f.Locals[i].Index += delta
		}
	}
	for i := range f.Stack {
		if f.Stack[i].Tag == VTUninitialized {
			f.Stack[i].Index += delta
		}
	}
}
