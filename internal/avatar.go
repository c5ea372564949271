package internal

import (
	"encoding/json"
	"math/rand"

	"github.com/google/uuid"
)

// Avatar option pools for the DiceBear big-smile schema. New accounts get a
// random combination; the client's customizer can replace it later.
var (
	avatarBackgrounds = []string{"b6e3f4", "c0aede", "d1d4f9", "ffd5dc", "ffdfbf", "c7f9cc", "fff2cc", "fca5a5", "5eead4"}
	avatarSkinColors  = []string{"ffe4c0", "f5d7b1", "efcc9f", "e2ba87", "c99c62", "a47539", "8c5a2b", "643d19"}
	avatarHairStyles  = []string{"shortHair", "mohawk", "wavyBob", "bowlCutHair", "curlyBob", "straightHair", "braids", "shavedHead", "bunHair", "froBun", "bangs", "halfShavedHead", "curlyShortHair"}
	avatarHairColors  = []string{"220f00", "3a1a00", "71472d", "e2ba87", "605de4", "238d80", "d56c0c", "e9b729"}
	avatarEyes        = []string{"cheery", "normal", "confused", "starstruck", "winking", "sleepy", "sad", "angry"}
	avatarMouths      = []string{"openedSmile", "unimpressed", "gapSmile", "openSad", "teethSmile", "awkwardSmile", "braces", "kawaii"}
	avatarAccessories = []string{"none", "catEars", "glasses", "sailormoonCrown", "clownNose", "sleepMask", "sunglasses", "faceMask", "mustache"}
)

type avatarDescriptor struct {
	Style             string   `json:"style"`
	Seed              string   `json:"seed"`
	BackgroundColor   []string `json:"backgroundColor"`
	SkinColor         []string `json:"skinColor"`
	Hair              []string `json:"hair"`
	HairColor         []string `json:"hairColor"`
	Eyes              []string `json:"eyes"`
	Mouth             []string `json:"mouth"`
	Accessories       []string `json:"accessories"`
	AccessoriesChance int      `json:"accessoriesChance"`
}

// DefaultAvatar builds a random avatar descriptor for a new account.
func DefaultAvatar() json.RawMessage {
	accessory := avatarAccessories[rand.Intn(len(avatarAccessories))]
	chance := 100
	if accessory == "none" {
		chance = 0
	}
	descriptor := avatarDescriptor{
		Style:             "big-smile",
		Seed:              uuid.NewString(),
		BackgroundColor:   []string{avatarBackgrounds[rand.Intn(len(avatarBackgrounds))]},
		SkinColor:         []string{avatarSkinColors[rand.Intn(len(avatarSkinColors))]},
		Hair:              []string{avatarHairStyles[rand.Intn(len(avatarHairStyles))]},
		HairColor:         []string{avatarHairColors[rand.Intn(len(avatarHairColors))]},
		Eyes:              []string{avatarEyes[rand.Intn(len(avatarEyes))]},
		Mouth:             []string{avatarMouths[rand.Intn(len(avatarMouths))]},
		Accessories:       []string{accessory},
		AccessoriesChance: chance,
	}
	encoded, err := json.Marshal(descriptor)
	if err != nil {
		return json.RawMessage(`{"style":"big-smile"}`)
	}
	return encoded
}
