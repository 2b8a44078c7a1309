package models

// Media вложение к донату.
type Media struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// DonationPayload тело webhook-уведомления о донате от Trakteer.
type DonationPayload struct {
	CreatedAt        string `json:"created_at"`
	TransactionID    string `json:"transaction_id"`
	Type             string `json:"type"`
	SupporterName    string `json:"supporter_name" validate:"required"`
	SupporterAvatar  string `json:"supporter_avatar"`
	SupporterMessage string `json:"supporter_message,omitempty"`
	Media            *Media `json:"media,omitempty"`
	Unit             string `json:"unit"`
	UnitIcon         string `json:"unit_icon"`
	Quantity         int    `json:"quantity"`
	Price            int64  `json:"price" validate:"gte=0"`
	NetAmount        int64  `json:"net_amount"`
}

// Transaction одна запись из истории транзакций Trakteer.
type Transaction struct {
	SupporterName  string `json:"supporter_name"`
	SupportMessage string `json:"support_message"`
	Quantity       int    `json:"quantity"`
	Amount         int64  `json:"amount"`
	UnitName       string `json:"unit_name"`
	UpdatedAt      string `json:"updated_at"`
}

// LastTransactionPayload ответ API Trakteer с последними транзакциями.
type LastTransactionPayload struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Result     struct {
		Data []Transaction `json:"data"`
	} `json:"result"`
	Message string `json:"message"`
}
