package relay

import (
	"fmt"

	"github.com/sweeney/relay-rig/internal/pins"
)

// Image is the value of each output bank, indexed by pins.Bank.
type Image [pins.NumBanks]byte

// Compose returns img with the bits of add set and the bits of remove
// cleared. Removal is applied after addition. Unregistered pins are ignored.
func Compose(img Image, add, remove pins.Set) Image {
	for _, p := range add {
		if info, ok := pins.Lookup(p); ok {
			img[info.Bank] |= info.Mask
		}
	}
	for _, p := range remove {
		if info, ok := pins.Lookup(p); ok {
			img[info.Bank] &^= info.Mask
		}
	}
	return img
}

// Pins decodes img into the registered pins it energizes.
func (img Image) Pins() pins.Set {
	var out pins.Set
	for _, b := range pins.Banks {
		for _, p := range pins.InBank(b) {
			info, _ := pins.Lookup(p)
			if img[b]&info.Mask != 0 {
				out = append(out, p)
			}
		}
	}
	return out
}

// Empty reports whether no bit is set.
func (img Image) Empty() bool {
	return img == Image{}
}

// Or returns the bitwise union of img and o.
func (img Image) Or(o Image) Image {
	for i := range img {
		img[i] |= o[i]
	}
	return img
}

func (img Image) String() string {
	return fmt.Sprintf("%s=%#02x %s=%#02x %s=%#02x %s=%#02x",
		pins.IC1GPIOA, img[pins.IC1GPIOA], pins.IC1GPIOB, img[pins.IC1GPIOB],
		pins.IC2GPIOA, img[pins.IC2GPIOA], pins.IC2GPIOB, img[pins.IC2GPIOB])
}
