package catalog

import "strings"

// Canonical container keys.
const (
	ContainerBooks  = "books"
	ContainerMovies = "movies"
	ContainerTV     = "tv"
	ContainerGames  = "games"
	ContainerMusic  = "music"
)

var containerAliases = map[string]string{
	"books":     ContainerBooks,
	"book":      ContainerBooks,
	"novel":     ContainerBooks,
	"comic":     ContainerBooks,
	"comics":    ContainerBooks,
	"manga":     ContainerBooks,
	"ebook":     ContainerBooks,
	"audiobook": ContainerBooks,

	"movies":  ContainerMovies,
	"movie":   ContainerMovies,
	"film":    ContainerMovies,
	"dvd":     ContainerMovies,
	"bluray":  ContainerMovies,
	"blu-ray": ContainerMovies,
	"4k":      ContainerMovies,

	"tv":     ContainerTV,
	"show":   ContainerTV,
	"series": ContainerTV,

	"games":     ContainerGames,
	"game":      ContainerGames,
	"videogame": ContainerGames,

	"music":  ContainerMusic,
	"album":  ContainerMusic,
	"cd":     ContainerMusic,
	"vinyl":  ContainerMusic,
	"record": ContainerMusic,
}

// ResolveContainer maps a container type or alias to its canonical key.
func ResolveContainer(containerType string) (string, bool) {
	key, ok := containerAliases[strings.ToLower(strings.TrimSpace(containerType))]
	return key, ok
}
