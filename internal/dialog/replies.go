package dialog

// Canned replies emitted by the stage machine. Each collecting-stage reply
// both acknowledges the current turn and asks the next question, so a single
// message moves the dialogue forward.
const (
	replyAskName        = "Great — I can help with that. May I have your name?"
	replyReAskName      = "Sorry, I didn't catch that. What name should I use for you?"
	replyAskEmail       = "Thanks, %s! What's the best work email to reach you at?"
	replyAskEmailNoName = "No problem — we can come back to that. What's the best work email to reach you at?"
	replyReAskEmail     = "That doesn't look like a valid email address. Could you share your work email?"
	replyWorkEmail      = "That looks like a personal address — could you share your work email instead? It helps us route you to the right team."
	replyAskCompany     = "Got it. Which company are you with?"
	replyAskJobTitle    = "Thanks! And what's your role there?"
	replyAskLocation    = "Noted. Where are you located?"
	replyAskTime        = "Almost done — when would be a good time for a quick call? Mornings and afternoons both work."
	replyReAskTime      = "When would suit you best for a call? For example \"tomorrow morning\" or \"next week\"."
	replyQualified      = "Perfect, you're all set! Our team will reach out shortly to confirm. Anything else I can help with in the meantime?"
	replySkipToNext     = "No problem, we can skip that."
	replyWhyCollect     = "Fair question! A few details help us match you with the right specialist and skip the generic back-and-forth. You can also type \"skip\" for anything you'd rather not share."
	replyNameForCall    = "Happy to set that up! May I have your name first?"
)

// Greeting is the assistant message seeded into every fresh session.
const Greeting = "Hi there! I'm the Convia assistant. I can answer questions about our services or set up a call with our team. What brings you here today?"
