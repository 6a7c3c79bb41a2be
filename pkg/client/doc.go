// Package client sends questions to the document query backend and streams
// the answers back.
//
// A query is a JSON POST to {base}/query, or the first text frame on a
// WebSocket to {base}/query/ws. The response body is the raw answer stream,
// which Query decodes into messages.Message snapshots.
//
// Example usage:
//
//	c, err := client.New(client.Config{
//		BaseURL: "http://localhost:8000",
//		Token:   os.Getenv("BRAIN_TOKEN"),
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	msg, err := c.Query(ctx, client.QueryRequest{Question: "Which doors are fire rated?"},
//		func(snap messages.Message) {
//			fmt.Print(snap.Content)
//		})
package client
