package command

import "fmt"

// Catalog holds the reply templates of one language.
type Catalog struct {
	IntervalChanged  string
	IntervalSet      string
	CutoffSet        string
	Deleted          string
	DeletedPartial   string
	NothingToDelete  string
	PermissionDenied string
	DeleteFailed     string
	ChannelNotFound  string
	SweepRunning     string
	Usage            string
	RateLimited      string
}

var catalogs = map[string]Catalog{
	"ja": {
		IntervalChanged:  "メッセージの削除間隔を %d 分に変更しました。",
		IntervalSet:      "メッセージの削除間隔を %d 分に設定しました。",
		CutoffSet:        "削除対象を %d 分以上前のメッセージに設定しました。",
		Deleted:          "%d 件のメッセージを削除しました。",
		DeletedPartial:   "%d 件のメッセージを削除しました（%d 件は削除できませんでした）。",
		NothingToDelete:  "削除対象のメッセージがありません。",
		PermissionDenied: "メッセージを削除する権限がありません。",
		DeleteFailed:     "メッセージの削除に失敗しました: %v",
		ChannelNotFound:  "チャンネル %s が見つかりません。",
		SweepRunning:     "チャンネル %s は現在削除処理中です。完了してから再度お試しください。",
		Usage:            "使い方: %s",
		RateLimited:      "コマンドの実行回数が多すぎます。しばらくしてから再度お試しください。",
	},
	"en": {
		IntervalChanged:  "Sweep interval changed to %d minutes.",
		IntervalSet:      "Sweep interval set to %d minutes.",
		CutoffSet:        "Messages older than %d minutes will be deleted.",
		Deleted:          "Deleted %d messages.",
		DeletedPartial:   "Deleted %d messages (%d could not be deleted).",
		NothingToDelete:  "There are no messages to delete.",
		PermissionDenied: "I do not have permission to delete messages.",
		DeleteFailed:     "Failed to delete messages: %v",
		ChannelNotFound:  "Channel %s was not found.",
		SweepRunning:     "A sweep of channel %s is already running. Try again when it finishes.",
		Usage:            "Usage: %s",
		RateLimited:      "Too many commands. Please try again shortly.",
	},
}

// CatalogFor returns the catalog for a locale, falling back to Japanese.
func CatalogFor(locale string) Catalog {
	if c, ok := catalogs[locale]; ok {
		return c
	}
	return catalogs["ja"]
}

func (c Catalog) usage(prefix, name, args string) string {
	return fmt.Sprintf(c.Usage, prefix+name+" "+args)
}
