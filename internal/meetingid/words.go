package meetingid

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"chick", "duckling", "fawn", "foal", "lamb", "calf", "porcupine", "raccoon", "skunk", "mole",
	"penguin", "flamingo", "pelican", "swallow", "sparrow", "robin", "toucan", "parrot", "canary", "dolphin",
}

var places = []string{
	"forest", "river", "mountain", "sky", "ocean", "meadow", "canyon", "ridge", "valley", "harbor",
	"island", "lagoon", "glacier", "desert", "prairie", "summit", "delta", "grove", "marsh", "reef",
}

var adjectives = []string{
	"happy", "quick", "bright", "calm", "dark", "tiny", "sleepy", "fluffy", "sparkly", "cheery",
	"golden", "silver", "crimson", "emerald", "purple", "gentle", "brave", "swift", "silent", "merry",
}
