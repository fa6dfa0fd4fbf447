// Example: resolve a playable stream URL for an episode
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gotaku-app/gotaku/pkg/gotaku"
)

func main() {
	client := gotaku.NewClient()
	ctx := context.Background()

	title := "Demon Slayer"
	fmt.Printf("Searching for '%s'...\n", title)
	results, err := client.Search(ctx, title)
	if err != nil {
		log.Fatal(err)
	}
	if len(results) == 0 {
		log.Fatal("No anime found")
	}

	anime := results[0]
	fmt.Printf("Selected: %s\n", anime.Title)

	fmt.Println("Fetching episode list...")
	detail, err := client.Detail(ctx, anime.ID)
	if err != nil {
		log.Fatal(err)
	}
	if detail.Notice != "" {
		fmt.Printf("Note: %s\n", detail.Notice)
	}
	if len(detail.Episodes) == 0 {
		log.Fatal("No episodes found")
	}

	episode := detail.Episodes[0]
	fmt.Printf("\nResolving stream for %q...\n", episode.Title)

	streamURL, headers, err := client.StreamURL(ctx, episode.ID)
	if err != nil {
		log.Fatalf("Error resolving stream URL: %v", err)
	}

	fmt.Println("\n=== Stream Information ===")
	fmt.Printf("Episode: %s\n", episode.Title)
	fmt.Printf("Stream URL: %s\n", streamURL)

	if len(headers) > 0 {
		fmt.Println("\nRequired headers:")
		for key, value := range headers {
			fmt.Printf("  %s: %s\n", key, value)
		}
	}

	fmt.Println("\nYou can use this URL with video players like mpv, vlc, or ffmpeg")
	fmt.Printf("Example: mpv %q\n", streamURL)
}
