// Example: basic catalog search using the gotaku library
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gotaku-app/gotaku/pkg/gotaku"
)

func main() {
	client := gotaku.NewClient()

	fmt.Println("Searching for 'One Piece'...")
	results, err := client.Search(context.Background(), "One Piece")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("\nFound %d results:\n\n", len(results))
	for i, anime := range results {
		fmt.Printf("%d. %s\n", i+1, anime.Title)
		fmt.Printf("   ID: %s\n", anime.ID)
		if anime.Episodes > 0 {
			fmt.Printf("   Episodes: %d\n", anime.Episodes)
		}
		if anime.Score != "" {
			fmt.Printf("   Score: %s\n", anime.Score)
		}
		fmt.Println()
	}
}
