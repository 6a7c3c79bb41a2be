// Package state keeps the client side of a conversation: the thread a chat
// belongs to, its history, and a local store of past threads.
//
// A Session asks one question at a time. Asking again cancels the question
// in flight, and the server's thread id is adopted from the first answer
// that carries one:
//
//	store, err := state.OpenBoltStore("brain.db")
//	if err != nil {
//		return err
//	}
//	defer store.Close()
//
//	session, err := state.NewSession(c, state.WithStore(store))
//	if err != nil {
//		return err
//	}
//	answer, err := session.Ask(ctx, "Which doors are fire rated?", func(snap messages.Message) {
//		fmt.Print(snap.Content)
//	})
//
// Resume reopens a stored thread so the conversation continues with its
// history.
package state
