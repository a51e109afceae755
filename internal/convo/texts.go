package convo

import (
	"fmt"
	"strings"
)

const (
	msgGenericFailure = "Something went wrong on our side. Please try again in a moment."
	msgSlowDown       = "You're sending messages too quickly. Please wait a minute and try again."
	msgUnknown        = "I didn't understand that. Please pick an option from the menu."
	msgCancelled      = "Cancelled. What would you like to do next?"
	msgSaveFailed     = "I couldn't save that. Please send it again."

	msgAskSiteURL    = "Send the address of your WooCommerce store, for example https://shop.example.com"
	msgInvalidURL    = "That doesn't look like a store address. Send a full link starting with https:// (or http://)."
	msgAskAPIKey     = "Now send your WooCommerce REST API consumer key (it starts with ck_)."
	msgEmptyAPIKey   = "The consumer key can't be empty. Please send it again."
	msgAskAPISecret  = "Finally, send the consumer secret (it starts with cs_)."
	msgEmptySecret   = "The consumer secret can't be empty. Please send it again."
	msgConnected     = "Your store is connected. You can now export your products."
	msgCheckingStore = "Checking the connection to your store..."
	msgStoreOK       = "Connection test passed."

	msgConnectFirst = "Please complete the store connection first: tap \"" + LabelConnect + "\"."
	msgExporting    = "Fetching your products. Large catalogs can take a minute..."
	msgNoProfile    = "You don't have a profile yet. Share your phone number or tap \"" + LabelConnect + "\" to get started."

	msgAskProductID     = "Send the ID of the product to update (the ID column of your spreadsheet)."
	msgInvalidProductID = "A product ID is a positive whole number, like 1234. Please try again."
	msgInvalidPrice     = "Please send the new price as a number, for example 19.99."
	msgAskSearch        = "Send a product name or SKU to search for."
	msgEmptySearch      = "The search text can't be empty. Please send a name or SKU."

	msgAskTorobKey       = "Send your Torob API key to compare your prices with the market, or send \"skip\" to keep the current one."
	msgInvalidDiscount   = "The discount is a percentage from 0 to 99, for example 5 or 7.5. Please try again."
	msgMarketHint        = "Tip: add a Torob API key with \"" + LabelMarket + "\" to see market prices here."
	msgMarketUnavailable = "Market price is unavailable right now."
	msgMarketRejected    = "Torob rejected your API key. Update it with \"" + LabelMarket + "\"."
)

const helpText = `How this bot works:
1. Tap "` + LabelConnect + `" and send your store address, consumer key and consumer secret.
2. Tap "` + LabelExport + `" to receive an Excel file with every product.
3. Use "` + LabelUpdatePrice + `" or "` + LabelFindProduct + `" for quick edits and lookups.
4. Add a Torob API key with "` + LabelMarket + `" and "` + LabelFindProduct + `" also shows the market minimum and a suggested price.

Where are the keys? In WordPress open WooCommerce > Settings > Advanced > REST API, add a key with Read/Write permissions and copy both values.

Send /cancel at any time to stop the current step.`

func welcomeText(firstName string) string {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! I export your WooCommerce catalog to a spreadsheet.\nShare your phone number to create a profile, or tap \"%s\" to begin.", name, LabelConnect)
}

func supportText(contact string) string {
	if strings.TrimSpace(contact) == "" {
		return "Support is not configured for this bot."
	}
	return fmt.Sprintf("Need help? Contact support: %s", contact)
}
