package capture

import (
	"context"
	"encoding/base64"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

func basicAuthHeader(user, pass string) chromedp.Action {
	token := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return err
		}
		return network.SetExtraHTTPHeaders(network.Headers{"Authorization": "Basic " + token}).Do(ctx)
	})
}
