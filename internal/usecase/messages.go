package usecase

import "fmt"

// LinkRemovedMessage is the success text shown after a link has been deleted.
func LinkRemovedMessage(provider string) string {
	return fmt.Sprintf(msgLinkRemovedFormat, provider)
}
