package telegram

import "github.com/ozonscout/backend/internal/domain"

const (
	startMessage = "Привет! Я помогу найти похожие товары на Ozon, сравнить цены и отзывы.\n\n" +
		"Отправьте /searchitems, чтобы начать поиск."
	searchItemsMessage = "Отправьте ссылку на товар Ozon, например:\n" +
		"<code>https://www.ozon.ru/product/...</code>"
	searchAnswerMessage  = "Нашли товар: <b>%s</b>\n\nКак отсортировать похожие товары?"
	awaitMessage         = "Ищу товары, это может занять минуту..."
	notRecognizedMessage = "Не удалось распознать товар по этой ссылке. Проверьте ссылку и отправьте ещё раз."
	noProductsMessage    = "По этому товару ничего не нашлось. Попробуйте другую ссылку: /searchitems"
	failureMessage       = "Ozon сейчас не отвечает, попробуйте позже: /searchitems"
	sessionExpired       = "Этот выбор уже неактуален"
	useSearchMessage     = "Чтобы найти товары, отправьте /searchitems"
	topProductsTitle     = "Топ товаров:"
	priceSummaryTitle    = "Средняя цена:"
	endMessage           = "Готово! Для нового поиска отправьте /searchitems"
	feedbackMessage      = "Оцените, пожалуйста, насколько полезной была подборка"
	thanksMessage        = "Спасибо за оценку! Если хотите, напишите комментарий."
	commentMessage       = "Спасибо за отзыв!"
)

// sortButton is one choice of the sort keyboard
type sortButton struct {
	Label string
	Mode  domain.SortMode
}

var sortButtons = []sortButton{
	{Label: "Дешевые", Mode: domain.SortPrice},
	{Label: "Популярные", Mode: domain.SortScore},
	{Label: "С высоким рейтингом", Mode: domain.SortRating},
	{Label: "Новинки", Mode: domain.SortNew},
}

// Callback data prefixes
const (
	sortPrefix = "sort_"
	starPrefix = "star_"
)
