package mp4box

// Tkhd is the track header box.
type Tkhd struct {
	TrackID  uint32
	Width    uint32 // 16.16 fixed point
	Height   uint32 // 16.16 fixed point
	IsAudio  bool
}

// Encode implements Box.
func (b Tkhd) Encode() []byte {
	fw := newFieldWriter()
	flags := uint32(0x000007) // track enabled, in movie, in preview
	fw.raw(fullBoxHeader(0, flags))
	fw.u32(0) // creation_time
	fw.u32(0) // modification_time
	fw.u32(b.TrackID)
	fw.u32(0) // reserved
	fw.u32(0) // duration (fragmented: lives in traf)
	fw.u32(0) // reserved
	fw.u32(0) // reserved
	fw.u16(0) // layer
	fw.u16(0) // alternate_group
	if b.IsAudio {
		fw.u16(0x0100) // volume 1.0
	} else {
		fw.u16(0)
	}
	fw.u16(0) // reserved
	matrix := []uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}
	for _, m := range matrix {
		fw.u32(m)
	}
	fw.u32(b.Width)
	fw.u32(b.Height)
	return encodeBox("tkhd", fw.bytes())
}

// Mdhd is the media header box.
type Mdhd struct {
	Timescale uint32
	Language  string // ISO-639-2/T, 3 lowercase letters
}

// Encode implements Box.
func (b Mdhd) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(0) // creation_time
	fw.u32(0) // modification_time
	fw.u32(b.Timescale)
	fw.u32(0) // duration
	fw.u16(encodeLanguage(b.Language))
	fw.u16(0) // pre_defined
	return encodeBox("mdhd", fw.bytes())
}

func encodeLanguage(lang string) uint16 {
	if len(lang) != 3 {
		lang = "und"
	}
	var v uint16
	for i := 0; i < 3; i++ {
		v = (v << 5) | uint16(lang[i]-0x60)
	}
	return v
}

// Hdlr is the handler-reference box.
type Hdlr struct {
	HandlerType string // "vide" or "soun"
	Name        string
}

// Encode implements Box.
func (b Hdlr) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(0) // pre_defined
	fw.fourcc(padBrand(b.HandlerType))
	for i := 0; i < 3; i++ {
		fw.u32(0) // reserved
	}
	fw.raw([]byte(b.Name))
	fw.u8(0) // null terminator
	return encodeBox("hdlr", fw.bytes())
}

// Vmhd is the video media header box.
type Vmhd struct{}

// Encode implements Box.
func (Vmhd) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 1))
	fw.u16(0) // graphicsmode
	fw.u16(0) // opcolor r
	fw.u16(0) // opcolor g
	fw.u16(0) // opcolor b
	return encodeBox("vmhd", fw.bytes())
}

// Smhd is the sound media header box.
type Smhd struct{}

// Encode implements Box.
func (Smhd) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u16(0) // balance
	fw.u16(0) // reserved
	return encodeBox("smhd", fw.bytes())
}

// URL is the data-entry url box, flags=1 meaning "media in same file".
type URL struct{}

// Encode implements Box.
func (URL) Encode() []byte {
	return encodeBox("url ", fullBoxHeader(0, 1))
}

// Dref is the data-reference box.
type Dref struct{}

// Encode implements Box.
func (Dref) Encode() []byte {
	fw := newFieldWriter()
	fw.raw(fullBoxHeader(0, 0))
	fw.u32(1) // entry_count
	body := fw.bytes()
	body = append(body, URL{}.Encode()...)
	return encodeBox("dref", body)
}

// Dinf is the data-information box.
type Dinf struct{}

// Encode implements Box.
func (Dinf) Encode() []byte {
	return encodeBox("dinf", Dref{}.Encode())
}

// Minf is the media-information box.
type Minf struct {
	IsAudio bool
	Stbl    Box
}

// Encode implements Box.
func (b Minf) Encode() []byte {
	var mediaHeader Box
	if b.IsAudio {
		mediaHeader = Smhd{}
	} else {
		mediaHeader = Vmhd{}
	}
	return encodeBox("minf", concatBoxes(mediaHeader, Dinf{}, b.Stbl))
}

// Mdia is the media box.
type Mdia struct {
	Mdhd Mdhd
	IsAudio bool
	Stbl    Box
}

// Encode implements Box.
func (b Mdia) Encode() []byte {
	handlerType, name := "vide", "VideoHandler"
	if b.IsAudio {
		handlerType, name = "soun", "SoundHandler"
	}
	hdlr := Hdlr{HandlerType: handlerType, Name: name}
	minf := Minf{IsAudio: b.IsAudio, Stbl: b.Stbl}
	return encodeBox("mdia", concatBoxes(b.Mdhd, hdlr, minf))
}

// Trak is one track box.
type Trak struct {
	Tkhd Tkhd
	Mdia Mdia
}

// Encode implements Box.
func (b Trak) Encode() []byte {
	return encodeBox("trak", concatBoxes(b.Tkhd, b.Mdia))
}
