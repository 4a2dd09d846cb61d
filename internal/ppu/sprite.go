package ppu

// Sprite is one OAM entry already resolved to screen-space: X is the
// sprite's leftmost column and Y its topmost scanline (OAM's raw +8/+16
// offsets already removed), so X/Y compare directly against a pixel
// column and LY. OAMIndex is the entry's original table position (lower
// index wins a same-X priority tie).
type Sprite struct {
	X, Y     int16
	Tile     byte
	Attr     byte
	OAMIndex int
}

const (
	attrPriority = 1 << 7 // 1 = behind BG colors 1-3
	attrFlipY    = 1 << 6
	attrFlipX    = 1 << 5
	attrPalette  = 1 << 4 // 0 = OBP0, 1 = OBP1
)

// scanSprites selects up to 10 OAM entries intersecting scanline ly,
// converting raw OAM Y/X to screen space, matching the DMG's OAM-scan
// priority rule (first 10 in table order, by Y-range membership).
func scanSprites(oam *[0xA0]byte, ly byte, tall bool) []Sprite {
	height := 8
	if tall {
		height = 16
	}
	var found []Sprite
	for i := 0; i < 40 && len(found) < 10; i++ {
		base := i * 4
		y := int(oam[base+0]) - 16
		x := int(oam[base+1]) - 8
		if int(ly) < y || int(ly) >= y+height {
			continue
		}
		found = append(found, Sprite{
			X:        int16(x),
			Y:        int16(y),
			Tile:     oam[base+2],
			Attr:     oam[base+3],
			OAMIndex: i,
		})
	}
	return found
}

// ComposeSpriteLine overlays sprites onto a prior BG+window scanline
// (bgci), returning the winning sprite color index per pixel (0 where no
// opaque, priority-eligible sprite pixel exists there).
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) [160]byte {
	out, _ := composeSpriteLineDetailed(mem, sprites, ly, bgci, tall)
	return out
}

// composeSpriteLineDetailed is ComposeSpriteLine plus the OBP palette
// select bit each winning pixel came from (undefined where out[x]==0).
func composeSpriteLineDetailed(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, tall bool) (out [160]byte, pal [160]byte) {
	ordered := append([]Sprite(nil), sprites...)
	// Smaller screen X wins; ties broken by lower OAM index.
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0; j-- {
			a, b := ordered[j-1], ordered[j]
			if a.X > b.X || (a.X == b.X && a.OAMIndex > b.OAMIndex) {
				ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
			}
		}
	}

	height := 8
	if tall {
		height = 16
	}
	for x := 0; x < 160; x++ {
		for _, s := range ordered {
			localX := x - int(s.X)
			if localX < 0 || localX >= 8 {
				continue
			}
			row := int(ly) - int(s.Y)
			if row < 0 || row >= height {
				continue
			}
			if s.Attr&attrFlipY != 0 {
				row = height - 1 - row
			}
			bit := localX
			if s.Attr&attrFlipX == 0 {
				bit = 7 - localX
			}
			tile := s.Tile
			if tall {
				tile &^= 0x01
				if row >= 8 {
					tile |= 0x01
					row -= 8
				}
			}
			base := 0x8000 + uint16(tile)*16 + uint16(row)*2
			lo := mem.Read(base)
			hi := mem.Read(base + 1)
			ci := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			if ci == 0 {
				continue
			}
			if s.Attr&attrPriority != 0 && bgci[x] != 0 {
				continue
			}
			out[x] = ci
			if s.Attr&attrPalette != 0 {
				pal[x] = 1
			}
			break
		}
	}
	return out, pal
}
